package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Student struct {
	Number    string    `json:"numero_estudiante"`
	FullName  string    `json:"nombre_completo"`
	Grade     string    `json:"grado"`
	Section   string    `json:"seccion,omitempty"`
	Email     string    `json:"email,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Book struct {
	Code      string          `json:"codigo,omitempty"`
	Title     string          `json:"nombre"`
	Grade     string          `json:"grado"`
	Subject   string          `json:"materia"`
	Publisher string          `json:"editorial,omitempty"`
	ISBN      string          `json:"isbn,omitempty"`
	Price     decimal.Decimal `json:"precio"`
	Quantity  int             `json:"cantidad"`
	UpdatedAt time.Time       `json:"updated_at"`
}
