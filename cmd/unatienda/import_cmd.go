package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"unatienda/internal/interface/api/client"
	"unatienda/internal/usecase/importing"
)

var (
	importServer       string
	importMapping      string
	importDefaultGrade string
	importNoUpdate     bool
	importPreviewOnly  bool
	importSequential   bool
	importYes          bool

	importCmd = &cobra.Command{
		Use:   "import <estudiantes|libros> [ARCHIVO|-]",
		Short: "Importa estudiantes o libros desde CSV o texto pegado de una hoja de cálculo",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runImport,
	}

	templateCmd = &cobra.Command{
		Use:   "template <estudiantes|libros>",
		Short: "Escribe la plantilla CSV de la entidad",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := importing.LookupEntity(args[0])
			if err != nil {
				return err
			}
			return importing.WriteTemplate(cmd.OutOrStdout(), entity)
		},
	}
)

func init() {
	importCmd.Flags().StringVar(&importServer, "server", "http://localhost:8080", "URL del servidor")
	importCmd.Flags().StringVar(&importMapping, "mapping", "", "mapeo de columnas, ej. numero=0,nombre=1,grado=2")
	importCmd.Flags().StringVar(&importDefaultGrade, "grado-default", "", "grado para filas sin grado")
	importCmd.Flags().BoolVar(&importNoUpdate, "no-update", false, "no actualizar registros existentes")
	importCmd.Flags().BoolVar(&importPreviewOnly, "preview", false, "solo mostrar la vista previa")
	importCmd.Flags().BoolVarP(&importYes, "yes", "y", false, "confirmar la importación sin preguntar")
	importCmd.Flags().BoolVar(&importSequential, "sequential", false, "libros: validar localmente y enviar uno por uno a /admin/libros")
}

func runImport(cmd *cobra.Command, args []string) error {
	entity, err := importing.LookupEntity(args[0])
	if err != nil {
		return err
	}

	raw, err := readInput(cmd.InOrStdin(), args[1:])
	if err != nil {
		return err
	}
	mapping, err := parseMapping(importMapping)
	if err != nil {
		return err
	}

	req := importing.Request{RawText: raw, ColumnMapping: mapping, DefaultGrade: importDefaultGrade}
	if importNoUpdate {
		off := false
		req.UpdateExisting = &off
	}

	api := client.New(importServer, nil)
	out := cmd.OutOrStdout()
	// si los datos llegaron por stdin no queda de dónde leer la confirmación
	fromStdin := len(args) < 2 || args[1] == "-"

	if importSequential {
		if entity.Name != importing.EntityBooks {
			return errors.New("--sequential solo aplica a libros")
		}
		parsed, err := client.ParseBooks(req)
		if err != nil {
			return err
		}
		printLocalPreview(out, parsed)
		if importPreviewOnly {
			return nil
		}
		ok, err := confirmImport(cmd.InOrStdin(), out, fromStdin)
		if err != nil || !ok {
			return err
		}
		printSummary(out, api.CommitBooks(cmd.Context(), parsed.Rows))
		return nil
	}

	preview, err := api.Preview(cmd.Context(), entity.Name, req)
	if err != nil {
		return err
	}
	printPreview(out, preview)
	if importPreviewOnly {
		return nil
	}
	ok, err := confirmImport(cmd.InOrStdin(), out, fromStdin)
	if err != nil || !ok {
		return err
	}

	sum, err := api.Import(cmd.Context(), entity.Name, req)
	if err != nil {
		return err
	}
	printSummary(out, *sum)
	return nil
}

var errNeedsConfirmation = errors.New("los datos llegaron por stdin: usa --yes para confirmar la importación")

// confirmImport pregunta antes de escribir; cualquier respuesta que no sea sí cancela.
func confirmImport(in io.Reader, out io.Writer, dataFromStdin bool) (bool, error) {
	if importYes {
		return true, nil
	}
	if dataFromStdin {
		return false, errNeedsConfirmation
	}
	fmt.Fprint(out, "¿Confirmar importación? [s/N]: ")
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "s", "si", "sí", "y", "yes":
		return true, nil
	}
	fmt.Fprintln(out, "importación cancelada")
	return false, nil
}

func readInput(stdin io.Reader, args []string) (string, error) {
	var r io.Reader = stdin
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// parseMapping lee "campo=indice,campo=indice". Vacío significa detectar por encabezados.
func parseMapping(s string) (importing.ColumnMapping, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	mapping := make(importing.ColumnMapping)
	for _, part := range strings.Split(s, ",") {
		name, idx, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("--mapping: %q no tiene la forma campo=indice", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("--mapping: índice inválido para %q", name)
		}
		mapping[strings.ToLower(strings.TrimSpace(name))] = n
	}
	return mapping, nil
}

func printPreview(w io.Writer, p *importing.Preview) {
	fmt.Fprintf(w, "nuevos: %d  actualizaciones: %d  errores: %d\n",
		p.Summary.New, p.Summary.Updates, p.Summary.Errors)
	if len(p.Errors) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILA\tERROR")
	for _, e := range p.Errors {
		fmt.Fprintf(tw, "%d\t%s\n", e.Row, e.Error)
	}
	tw.Flush()
}

func printLocalPreview(w io.Writer, p importing.ParseResult) {
	valid, errs := 0, 0
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, row := range p.Rows {
		if row.Valid {
			valid++
			continue
		}
		if errs == 0 {
			fmt.Fprintln(tw, "FILA\tERROR")
		}
		errs++
		fmt.Fprintf(tw, "%d\t%s\n", row.RowNumber, row.Error)
	}
	fmt.Fprintf(w, "válidos: %d  errores: %d\n", valid, errs)
	tw.Flush()
}

func printSummary(w io.Writer, s importing.Summary) {
	fmt.Fprintf(w, "creados: %d  actualizados: %d  omitidos: %d  errores: %d  inválidos: %d\n",
		s.Created, s.Updated, s.Skipped, s.Errors, s.Invalid)
	for _, r := range s.Results {
		if r.Error != "" {
			fmt.Fprintf(w, "  fila %d: %s\n", r.Row, r.Error)
		}
	}
}
