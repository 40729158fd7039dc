package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
	"github.com/vfg2006/adstats-sync/internal/config"
	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/internal/metrics"
	"github.com/vfg2006/adstats-sync/internal/usecases/syncing"
	"github.com/vfg2006/adstats-sync/pkg/log"
	"github.com/vfg2006/adstats-sync/pkg/utils"
	"github.com/vfg2006/adstats-sync/pkg/workerpool"
)

const ReconciliationScanRun = "reconciliation"

// ReconciliationScanConfig representa a configuração da varredura de reconciliação
type ReconciliationScanConfig struct {
	CronSchedule   string
	ScanEnabled    bool
	AccountWorkers int
	Floor          time.Time
	RMaxSpanDays   int
	MaxAttempts    int
	RetryDelay     time.Duration
	LockTTL        time.Duration
	Location       *time.Location
	RCredentials   int
}

// ScanOptions restringe a varredura a uma conta
type ScanOptions struct {
	AccountID string
}

// ReconciliationScanService compara as datas gravadas com o período esperado
// de cada conta e preenche as lacunas
type ReconciliationScanService struct {
	scheduler   *gocron.Scheduler
	config      ReconciliationScanConfig
	registry    syncing.AccountRegistry
	credentials syncing.CredentialStore
	store       syncing.StatsStore
	engine      *statsEngine
	metrics     *metrics.Metrics
	guard       *runGuard
	now         func() time.Time
}

// NewReconciliationScanService cria uma nova instância do serviço de reconciliação
func NewReconciliationScanService(
	registry syncing.AccountRegistry,
	credentials syncing.CredentialStore,
	store syncing.StatsStore,
	adapters []syncing.PlatformAdapter,
	locker RunLocker,
	m *metrics.Metrics,
	appConfig *config.Config,
) *ReconciliationScanService {
	floor, err := appConfig.ReconciliationScan.Floor()
	if err != nil {
		logrus.WithError(err).Warn("Data mínima de reconciliação inválida, usando a data de início de cada conta")
	}

	scanConfig := ReconciliationScanConfig{
		CronSchedule:   appConfig.ReconciliationScan.CronSchedule,
		ScanEnabled:    appConfig.ReconciliationScan.Enabled,
		AccountWorkers: appConfig.ReconciliationScan.AccountWorkers,
		Floor:          floor,
		RMaxSpanDays:   appConfig.RPlatform.MaxSpanDays,
		MaxAttempts:    appConfig.ReconciliationScan.MaxAttempts,
		RetryDelay:     appConfig.ReconciliationScan.RetryDelay,
		LockTTL:        appConfig.ReconciliationScan.LockTTL,
		Location:       appConfig.App.Location,
		RCredentials:   len(appConfig.RPlatform.Credentials),
	}
	if scanConfig.Location == nil {
		scanConfig.Location = time.UTC
	}
	if scanConfig.RMaxSpanDays < 1 {
		scanConfig.RMaxSpanDays = 7
	}

	logrus.WithFields(logrus.Fields{
		"cron_schedule":   scanConfig.CronSchedule,
		"scan_enabled":    scanConfig.ScanEnabled,
		"account_workers": scanConfig.AccountWorkers,
		"floor_date":      scanConfig.Floor.Format(time.DateOnly),
	}).Info("Configuração da reconciliação carregada")

	engine := newStatsEngine(ReconciliationScanRun, adapters, store, m, scanConfig.MaxAttempts, scanConfig.RetryDelay)

	return &ReconciliationScanService{
		scheduler:   gocron.NewScheduler(scanConfig.Location),
		config:      scanConfig,
		registry:    registry,
		credentials: credentials,
		store:       store,
		engine:      engine,
		metrics:     engine.metrics,
		guard:       newRunGuard(ReconciliationScanRun, scanConfig.LockTTL, locker),
		now:         time.Now,
	}
}

// Start inicia o agendador
func (s *ReconciliationScanService) Start(ctx context.Context) error {
	if !s.config.ScanEnabled {
		logrus.Info("Reconciliação desabilitada por configuração")
		return nil
	}

	logrus.WithField("cron", s.config.CronSchedule).Info("Iniciando agendador da reconciliação")

	_, err := s.scheduler.Cron(s.config.CronSchedule).Do(func() {
		if _, err := s.Run(ctx, ScanOptions{}, nil); err != nil {
			if errors.Is(err, domain.ErrRunInProgress) {
				logrus.Info("Reconciliação já em andamento, ignorando")
				return
			}
			logrus.WithError(err).Error("Reconciliação agendada terminou com erro")
		}
	})
	if err != nil {
		return fmt.Errorf("erro ao agendar reconciliação: %w", err)
	}

	s.scheduler.StartAsync()

	go func() {
		<-ctx.Done()
		logrus.Info("Parando agendador da reconciliação")
		s.scheduler.Stop()
	}()

	return nil
}

// TriggerManualScan inicia manualmente uma varredura em segundo plano
func (s *ReconciliationScanService) TriggerManualScan(opts ScanOptions) error {
	if s.guard.isRunning() {
		logrus.Info("Reconciliação já em andamento, ignorando solicitação manual")
		return domain.ErrRunInProgress
	}

	logrus.Info("Iniciando reconciliação manual")
	go func() {
		if _, err := s.Run(context.Background(), opts, nil); err != nil && !errors.Is(err, domain.ErrRunInProgress) {
			logrus.WithError(err).Error("Reconciliação manual terminou com erro")
		}
	}()
	return nil
}

// MissingDates lista as datas do período esperado da conta, de max(início,
// data mínima) até ontem, que ainda não têm linha gravada
func (s *ReconciliationScanService) MissingDates(ctx context.Context, acc *domain.AdAccount, yesterday time.Time) ([]time.Time, error) {
	start := utils.CivilDate(acc.StartDate)
	if !s.config.Floor.IsZero() && start.Before(s.config.Floor) {
		start = s.config.Floor
	}

	// end_date não limita o período esperado
	expected := utils.DateRange(start, yesterday)
	if len(expected) == 0 {
		return nil, nil
	}

	existing, err := s.store.ExistingDates(ctx, acc.ID, expected)
	if err != nil {
		return nil, domain.NewSyncError(domain.ErrStoreUnavailable, acc.ExternalID, "", err)
	}

	present := make(map[string]struct{}, len(existing))
	for _, d := range existing {
		present[d.Format(time.DateOnly)] = struct{}{}
	}

	missing := make([]time.Time, 0, len(expected))
	for _, d := range expected {
		if _, ok := present[d.Format(time.DateOnly)]; !ok {
			missing = append(missing, d)
		}
	}

	return missing, nil
}

// Run varre as contas ativas em um pool limitado. Datas ausentes da
// plataforma R são buscadas em blocos contíguos dentro do limite de dias da
// plataforma; as da plataforma D, uma data por vez. Data buscada sem dados é
// gravada como linha zerada. Contas sem lacunas não geram eventos.
func (s *ReconciliationScanService) Run(ctx context.Context, opts ScanOptions, sink EmitFunc) (*domain.RunSummary, error) {
	finish, err := s.guard.acquire(ctx)
	if err != nil {
		return nil, err
	}

	runID, err := utils.NewRunID(ReconciliationScanRun, s.now())
	if err != nil {
		finish(nil)
		return nil, fmt.Errorf("erro ao gerar id da execução: %w", err)
	}
	ctx = log.WithRunID(ctx, runID)

	stopTracking := s.metrics.TrackRun(ReconciliationScanRun)
	defer stopTracking()

	events := newEmitter(ReconciliationScanRun, runID, sink)
	yesterday := utils.Yesterday(s.now(), s.config.Location)

	startTime := time.Now()
	events.info(fmt.Sprintf("Iniciando reconciliação até %s", yesterday.Format(time.DateOnly)))

	summary, runErr := s.run(ctx, runID, yesterday, opts, events)

	summary.Aborted = runErr != nil
	if runErr != nil {
		events.critical(fmt.Sprintf("Reconciliação interrompida: %v", runErr))
	}

	logrus.WithFields(logrus.Fields{
		"run_id":    runID,
		"duration":  time.Since(startTime).String(),
		"accounts":  summary.Accounts,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"rows":      summary.Rows,
	}).Info("Reconciliação concluída")

	events.done(summary, fmt.Sprintf(
		"Reconciliação concluída: %d contas, %d linhas preenchidas, %d contas com falha",
		summary.Accounts, summary.Rows, summary.Failed,
	))
	finish(summary)

	return summary, runErr
}

func (s *ReconciliationScanService) run(ctx context.Context, runID string, yesterday time.Time, opts ScanOptions, events *emitter) (*domain.RunSummary, error) {
	accounts, err := s.registry.ListActive(ctx, nil, opts.AccountID)
	if err != nil {
		return &domain.RunSummary{RunID: runID}, fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}

	counts := newTally(runID, len(accounts))
	if len(accounts) == 0 {
		events.info("Nenhuma conta ativa encontrada para reconciliação")
		return counts.snapshot(), nil
	}

	rReady := s.config.RCredentials > 0
	if !rReady {
		logrus.Warn("Nenhuma credencial da plataforma R configurada, contas R serão ignoradas")
	}

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	workCtx := context.WithoutCancel(ctx)

	var (
		fatalOnce sync.Once
		fatalErr  error
	)
	abort := func(err error) {
		fatalOnce.Do(func() {
			fatalErr = err
			stopDispatch()
		})
	}

	pool := workerpool.New(dispatchCtx, s.config.AccountWorkers)
	for _, acc := range accounts {
		if acc.Platform == domain.PlatformR && !rReady {
			counts.add(func(sum *domain.RunSummary) { sum.Skipped++ })
			s.metrics.RecordUnit(ReconciliationScanRun, string(acc.Platform), metrics.OutcomeSkipped)
			events.emit(domain.ProgressEvent{
				Message:   fmt.Sprintf("[%s] %s: sem credencial da plataforma R, ignorando", acc.Platform, acc.ExternalID),
				Error:     true,
				Kind:      domain.EventKindBackfill,
				AccountID: acc.ExternalID,
			})
			continue
		}

		if !pool.Go(func() { s.scanAccount(dispatchCtx, workCtx, acc, yesterday, counts, events, abort) }) {
			counts.add(func(sum *domain.RunSummary) { sum.Skipped++ })
		}
	}
	pool.Wait()

	return counts.snapshot(), fatalErr
}

// scanAccount preenche as lacunas de uma conta. dispatchCtx decide se novas
// unidades ainda podem começar; workCtx é usado nas chamadas já iniciadas.
func (s *ReconciliationScanService) scanAccount(dispatchCtx, workCtx context.Context, acc *domain.AdAccount, yesterday time.Time, counts *tally, events *emitter, abort func(error)) {
	missing, err := s.MissingDates(workCtx, acc, yesterday)
	if err != nil {
		abort(err)
		counts.add(func(sum *domain.RunSummary) { sum.Failed++ })
		return
	}

	if len(missing) == 0 {
		logrus.WithField("account_id", acc.ExternalID).Debug("Conta sem lacunas")
		counts.add(func(sum *domain.RunSummary) { sum.Succeeded++ })
		return
	}

	events.emit(domain.ProgressEvent{
		Message:   fmt.Sprintf("[%s] %s: %d data(s) ausente(s)", acc.Platform, acc.ExternalID, len(missing)),
		Kind:      domain.EventKindBackfill,
		AccountID: acc.ExternalID,
	})

	var credential string
	switch acc.Platform {
	case domain.PlatformD:
		token, err := s.credentials.TokenFor(workCtx, acc)
		if err != nil {
			if !errors.Is(err, domain.ErrCredentialMissing) {
				abort(fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err))
				counts.add(func(sum *domain.RunSummary) { sum.Failed++ })
				return
			}
			counts.add(func(sum *domain.RunSummary) { sum.Skipped++ })
			s.metrics.RecordUnit(ReconciliationScanRun, string(acc.Platform), metrics.OutcomeSkipped)
			events.emit(backfillEvent(acc, missing[0], missing[len(missing)-1], "sem credencial, ignorando", true))
			return
		}
		credential = token
	case domain.PlatformR:
	default:
		counts.add(func(sum *domain.RunSummary) { sum.Skipped++ })
		events.emit(backfillEvent(acc, missing[0], missing[len(missing)-1], fmt.Sprintf("plataforma desconhecida %q", acc.Platform), true))
		return
	}

	failed := false
	for _, unit := range s.planUnits(acc, missing) {
		if dispatchCtx.Err() != nil {
			failed = true
			events.emit(backfillEvent(acc, unit.Start, unit.End, "não despachada, execução interrompida", true))
			continue
		}

		rows, err := s.engine.syncUnits(workCtx, credential, []*domain.WorkUnit{unit})
		counts.add(func(sum *domain.RunSummary) { sum.Rows += rows })

		if err != nil && domain.IsFatal(err) {
			abort(err)
		}

		if unit.Done() {
			events.emit(backfillEvent(acc, unit.Start, unit.End, fmt.Sprintf("%d linha(s) preenchida(s)", rows), false))
			continue
		}

		failed = true
		cause := unit.LastErr
		if cause == nil {
			cause = err
		}
		events.emit(backfillEvent(acc, unit.Start, unit.End, fmt.Sprintf("falha após %d tentativa(s): %v", unit.Attempts, cause), true))
	}

	if failed {
		counts.add(func(sum *domain.RunSummary) { sum.Failed++ })
		return
	}
	counts.add(func(sum *domain.RunSummary) { sum.Succeeded++ })
}

// planUnits quebra as datas ausentes em unidades: blocos contíguos para R,
// uma data por unidade para D
func (s *ReconciliationScanService) planUnits(acc *domain.AdAccount, missing []time.Time) []*domain.WorkUnit {
	if acc.Platform == domain.PlatformD {
		units := make([]*domain.WorkUnit, 0, len(missing))
		for _, d := range missing {
			units = append(units, domain.NewWorkUnit(acc, d, d))
		}
		return units
	}

	chunks := utils.ChunkContiguous(missing, s.config.RMaxSpanDays)
	units := make([]*domain.WorkUnit, 0, len(chunks))
	for _, chunk := range chunks {
		units = append(units, domain.NewWorkUnit(acc, chunk[0], chunk[len(chunk)-1]))
	}
	return units
}

func backfillEvent(acc *domain.AdAccount, start, end time.Time, msg string, failed bool) domain.ProgressEvent {
	window := start.Format(time.DateOnly)
	if !end.Equal(start) {
		window += ".." + end.Format(time.DateOnly)
	}

	return domain.ProgressEvent{
		Message:   fmt.Sprintf("[%s] %s %s: %s", acc.Platform, acc.ExternalID, window, msg),
		Error:     failed,
		Kind:      domain.EventKindBackfill,
		AccountID: acc.ExternalID,
		Date:      start.Format(time.DateOnly),
	}
}

// GetStatus retorna o status atual do agendador
func (s *ReconciliationScanService) GetStatus() map[string]any {
	status := s.guard.status()
	status["scan_enabled"] = s.config.ScanEnabled
	status["scan_cron"] = s.config.CronSchedule
	status["account_workers"] = s.config.AccountWorkers
	status["floor_date"] = s.config.Floor.Format(time.DateOnly)
	return status
}
