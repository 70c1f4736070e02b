package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"unatienda/internal/app/events"
	ttsruntime "unatienda/internal/app/tts/runner"
	"unatienda/internal/domain"
	"unatienda/internal/infrastructure/audio"
	"unatienda/internal/infrastructure/config"
	sqlitestorage "unatienda/internal/infrastructure/persistence/sqlite"
	"unatienda/internal/infrastructure/realtime"
	ws "unatienda/internal/interface/api/ws"
	"unatienda/internal/interface/outs"
	"unatienda/internal/usecase/announcements"
	"unatienda/internal/usecase/importing"
	"unatienda/internal/usecase/notifications"
	ttsusecase "unatienda/internal/usecase/tts"
)

type Options struct {
	// Config reemplaza la carga desde el entorno (la CLI lo usa para aplicar flags).
	Config *config.Config
	// Player reemplaza la salida de audio; si es nil se decide según AUDIO_ENABLED.
	Player ttsruntime.Player
}

type Runtime struct {
	cancel   context.CancelFunc
	store    *sqlitestorage.Store
	bus      *events.Bus
	wsServer *ws.Server
	ttsServ  *ttsusecase.Service
	runner   *ttsruntime.Runner
	bridge   *realtime.Bridge
	group    *errgroup.Group

	stopOnce sync.Once
	stopErr  error
}

// Start arma las dependencias y lanza el servidor, el runner de anuncios y los
// consumidores del bus. Devuelve en cuanto todo está corriendo.
func Start(ctx context.Context, opts Options) (*Runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	log.SetLevel(cfg.Level())

	overflow, err := ttsruntime.ParseOverflowPolicy(cfg.TTSQueueOverflow)
	if err != nil {
		return nil, fmt.Errorf("config: TTS_QUEUE_OVERFLOW: %w", err)
	}

	store, err := sqlitestorage.NewStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	runtimeCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runtimeCtx)

	bus := events.NewBus()

	ttsService := ttsusecase.NewService(ttsusecase.Config{
		Repo: store,
		OpenAI: ttsusecase.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAITTSModel,
		},
		ElevenLabs: ttsusecase.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsBaseURL,
			Model:   cfg.ElevenLabsModel,
		},
	})

	importer := importing.NewImporter(store, store, bus)

	player := opts.Player
	if player == nil {
		if cfg.AudioEnabled {
			player = audio.NewPlayer(cfg.AudioSampleRate)
		} else {
			player = audio.SilentPlayer{}
		}
	}

	run := &Runtime{
		cancel:  cancel,
		store:   store,
		bus:     bus,
		ttsServ: ttsService,
		group:   group,
	}

	wsServer := ws.NewServer(ws.Config{
		Addr:     cfg.HTTPAddr,
		Bus:      bus,
		TTS:      ttsService,
		History:  store,
		Importer: importer,
		Books:    store,
	})
	run.wsServer = wsServer

	publisher := outs.NewMultiPublisher()
	publisher.Register("ws", wsServer)

	runner := ttsruntime.New(ttsruntime.Config{
		Synth:     ttsService,
		Player:    player,
		Publisher: publisher,
		Bus:       bus,
		QueueSize: cfg.TTSQueueSize,
		Overflow:  overflow,
	})
	run.runner = runner
	wsServer.SetTTSStatusProvider(runner)

	if ttsService.Muted(runtimeCtx) {
		runner.SetMuted(true)
	}
	ttsService.OnMute(runner.SetMuted)
	runner.Start(groupCtx)

	role := domain.RoleByName(cfg.AnnouncerRole)
	listener := announcements.NewListener(bus, ttsService, runner, role)
	recorder := announcements.NewRecorder(bus, store)
	eventLogger := notifications.NewEventLogger(bus, nil)

	group.Go(func() error { return listener.Run(groupCtx) })
	group.Go(func() error { return recorder.Run(groupCtx) })
	group.Go(func() error { return eventLogger.Run(groupCtx) })
	group.Go(func() error {
		if err := wsServer.Start(groupCtx); err != nil {
			return fmt.Errorf("ws server: %w", err)
		}
		return nil
	})

	if cfg.NATSURL != "" {
		bridge, err := realtime.Connect(realtime.Config{
			URL:           cfg.NATSURL,
			Subject:       cfg.NATSSubject,
			SpokenSubject: cfg.NATSSpokenSubject,
		}, bus)
		if err != nil {
			log.Warn("runtime: sin puente NATS", "err", err)
			bus.PublishError("nats", err)
		} else {
			run.bridge = bridge
			publisher.Register("nats", bridge)
			group.Go(func() error { return bridge.Run(groupCtx) })
		}
	}

	log.Info("runtime: listo", "addr", cfg.HTTPAddr, "role", role.Name, "audio", cfg.AudioEnabled)
	return run, nil
}

// Wait bloquea hasta que el contexto termina o un componente falla.
func (r *Runtime) Wait() error {
	err := r.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Runtime) Stop() error {
	r.stopOnce.Do(func() {
		r.cancel()
		_ = r.group.Wait()
		if r.runner != nil {
			_ = r.runner.Close()
		}
		if r.bridge != nil {
			r.bridge.Close()
		}
		r.bus.Close()
		r.stopErr = r.store.Close()
	})
	return r.stopErr
}

func (r *Runtime) Bus() *events.Bus {
	return r.bus
}

func (r *Runtime) TTSService() *ttsusecase.Service {
	return r.ttsServ
}

func (r *Runtime) TTSRunner() *ttsruntime.Runner {
	return r.runner
}

