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

const DailyStatsSyncRun = "daily_sync"

// DailyStatsSyncConfig representa a configuração da sincronização diária
type DailyStatsSyncConfig struct {
	CronSchedule string
	SyncEnabled  bool
	RWorkers     int
	DWorkers     int
	MaxAttempts  int
	RetryDelay   time.Duration
	LockTTL      time.Duration
	Location     *time.Location
	RCredentials int
}

// SyncOptions filtra uma execução da sincronização diária. Sem Date, a data
// alvo é ontem no fuso de negócio.
type SyncOptions struct {
	Date      *time.Time
	AccountID string
}

// DailyStatsSyncService sincroniza as métricas de uma data para todas as contas ativas
type DailyStatsSyncService struct {
	scheduler   *gocron.Scheduler
	config      DailyStatsSyncConfig
	registry    syncing.AccountRegistry
	credentials syncing.CredentialStore
	engine      *statsEngine
	metrics     *metrics.Metrics
	guard       *runGuard
	now         func() time.Time
}

// NewDailyStatsSyncService cria uma nova instância do serviço de sincronização diária
func NewDailyStatsSyncService(
	registry syncing.AccountRegistry,
	credentials syncing.CredentialStore,
	store syncing.StatsStore,
	adapters []syncing.PlatformAdapter,
	locker RunLocker,
	m *metrics.Metrics,
	appConfig *config.Config,
) *DailyStatsSyncService {
	syncConfig := DailyStatsSyncConfig{
		CronSchedule: appConfig.DailyStatsSync.CronSchedule,
		SyncEnabled:  appConfig.DailyStatsSync.Enabled,
		RWorkers:     appConfig.DailyStatsSync.RWorkers,
		DWorkers:     appConfig.DailyStatsSync.DWorkers,
		MaxAttempts:  appConfig.DailyStatsSync.MaxAttempts,
		RetryDelay:   appConfig.DailyStatsSync.RetryDelay,
		LockTTL:      appConfig.DailyStatsSync.LockTTL,
		Location:     appConfig.App.Location,
		RCredentials: len(appConfig.RPlatform.Credentials),
	}
	if syncConfig.Location == nil {
		syncConfig.Location = time.UTC
	}

	logrus.WithFields(logrus.Fields{
		"cron_schedule": syncConfig.CronSchedule,
		"sync_enabled":  syncConfig.SyncEnabled,
		"r_workers":     syncConfig.RWorkers,
		"d_workers":     syncConfig.DWorkers,
		"max_attempts":  syncConfig.MaxAttempts,
		"timezone":      syncConfig.Location.String(),
	}).Info("Configuração da sincronização diária carregada")

	engine := newStatsEngine(DailyStatsSyncRun, adapters, store, m, syncConfig.MaxAttempts, syncConfig.RetryDelay)

	return &DailyStatsSyncService{
		scheduler:   gocron.NewScheduler(syncConfig.Location),
		config:      syncConfig,
		registry:    registry,
		credentials: credentials,
		engine:      engine,
		metrics:     engine.metrics,
		guard:       newRunGuard(DailyStatsSyncRun, syncConfig.LockTTL, locker),
		now:         time.Now,
	}
}

// Start inicia o agendador
func (s *DailyStatsSyncService) Start(ctx context.Context) error {
	if !s.config.SyncEnabled {
		logrus.Info("Sincronização diária desabilitada por configuração")
		return nil
	}

	logrus.WithField("cron", s.config.CronSchedule).Info("Iniciando agendador da sincronização diária")

	_, err := s.scheduler.Cron(s.config.CronSchedule).Do(func() {
		s.runScheduled(ctx)
	})
	if err != nil {
		return fmt.Errorf("erro ao agendar sincronização diária: %w", err)
	}

	s.scheduler.StartAsync()

	go func() {
		<-ctx.Done()
		logrus.Info("Parando agendador da sincronização diária")
		s.scheduler.Stop()
	}()

	return nil
}

func (s *DailyStatsSyncService) runScheduled(ctx context.Context) {
	if _, err := s.Run(ctx, SyncOptions{}, nil); err != nil {
		if errors.Is(err, domain.ErrRunInProgress) {
			logrus.Info("Sincronização diária já em andamento, ignorando")
			return
		}
		logrus.WithError(err).Error("Sincronização diária agendada terminou com erro")
	}
}

// TriggerManualSync inicia manualmente uma sincronização em segundo plano
func (s *DailyStatsSyncService) TriggerManualSync(opts SyncOptions) error {
	if s.guard.isRunning() {
		logrus.Info("Sincronização diária já em andamento, ignorando solicitação manual")
		return domain.ErrRunInProgress
	}

	logrus.Info("Iniciando sincronização diária manual")
	go func() {
		if _, err := s.Run(context.Background(), opts, nil); err != nil && !errors.Is(err, domain.ErrRunInProgress) {
			logrus.WithError(err).Error("Sincronização diária manual terminou com erro")
		}
	}()
	return nil
}

// Run sincroniza a data alvo para as contas ativas. Contas R são buscadas uma
// por tarefa; contas D são agrupadas pela credencial e cada grupo é uma
// tarefa, em pools separados. Cada conta gera um evento de progresso. A
// falha de uma conta não interrompe a execução e sua linha não é alterada;
// apenas falha do cadastro ou do armazenamento encerra a execução, com um
// evento crítico. Cancelar ctx interrompe o despacho de novas tarefas, e as
// já despachadas terminam.
func (s *DailyStatsSyncService) Run(ctx context.Context, opts SyncOptions, sink EmitFunc) (*domain.RunSummary, error) {
	finish, err := s.guard.acquire(ctx)
	if err != nil {
		return nil, err
	}

	runID, err := utils.NewRunID(DailyStatsSyncRun, s.now())
	if err != nil {
		finish(nil)
		return nil, fmt.Errorf("erro ao gerar id da execução: %w", err)
	}
	ctx = log.WithRunID(ctx, runID)

	stopTracking := s.metrics.TrackRun(DailyStatsSyncRun)
	defer stopTracking()

	events := newEmitter(DailyStatsSyncRun, runID, sink)
	target := utils.Yesterday(s.now(), s.config.Location)
	if opts.Date != nil {
		target = utils.CivilDate(*opts.Date)
	}

	startTime := time.Now()
	events.info(fmt.Sprintf("Iniciando sincronização de %s", target.Format(time.DateOnly)))

	summary, runErr := s.run(ctx, runID, target, opts, events)

	summary.Aborted = runErr != nil
	if runErr != nil {
		events.critical(fmt.Sprintf("Sincronização interrompida: %v", runErr))
	}

	logrus.WithFields(logrus.Fields{
		"run_id":    runID,
		"date":      target.Format(time.DateOnly),
		"duration":  time.Since(startTime).String(),
		"accounts":  summary.Accounts,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
		"rows":      summary.Rows,
	}).Info("Sincronização diária concluída")

	events.done(summary, fmt.Sprintf(
		"Sincronização concluída: %d contas, %d com sucesso, %d com falha, %d ignoradas",
		summary.Accounts, summary.Succeeded, summary.Failed, summary.Skipped,
	))
	finish(summary)

	return summary, runErr
}

func (s *DailyStatsSyncService) run(ctx context.Context, runID string, target time.Time, opts SyncOptions, events *emitter) (*domain.RunSummary, error) {
	accounts, err := s.registry.ListActive(ctx, nil, opts.AccountID)
	if err != nil {
		return &domain.RunSummary{RunID: runID}, fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
	}

	if len(accounts) == 0 {
		events.info("Nenhuma conta ativa encontrada para sincronização")
		return &domain.RunSummary{RunID: runID}, nil
	}

	counts := newTally(runID, len(accounts))
	rAccounts, dAccounts := s.partition(accounts, target, counts, events)

	dGroups, err := s.groupByCredential(ctx, dAccounts, counts, events)
	if err != nil {
		return counts.snapshot(), err
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

	rPool := workerpool.New(dispatchCtx, s.config.RWorkers)
	dPool := workerpool.New(dispatchCtx, s.config.DWorkers)

	var dispatchers sync.WaitGroup
	dispatchers.Add(2)

	go func() {
		defer dispatchers.Done()
		for _, acc := range rAccounts {
			units := []*domain.WorkUnit{domain.NewWorkUnit(acc, target, target)}
			if !rPool.Go(func() { s.process(workCtx, "", units, counts, events, abort) }) {
				s.reportUndispatched(units, counts, events)
			}
		}
	}()

	go func() {
		defer dispatchers.Done()
		for _, group := range dGroups {
			units := make([]*domain.WorkUnit, 0, len(group.accounts))
			for _, acc := range group.accounts {
				units = append(units, domain.NewWorkUnit(acc, target, target))
			}
			if !dPool.Go(func() { s.process(workCtx, group.credential, units, counts, events, abort) }) {
				s.reportUndispatched(units, counts, events)
			}
		}
	}()

	dispatchers.Wait()
	rPool.Wait()
	dPool.Wait()

	return counts.snapshot(), fatalErr
}

// partition separa as contas por plataforma. Contas que ainda não começaram
// na data alvo e contas R sem credencial configurada são ignoradas com evento.
func (s *DailyStatsSyncService) partition(accounts []*domain.AdAccount, target time.Time, counts *tally, events *emitter) ([]*domain.AdAccount, []*domain.AdAccount) {
	var rAccounts, dAccounts []*domain.AdAccount

	rReady := s.config.RCredentials > 0
	if !rReady {
		logrus.Warn("Nenhuma credencial da plataforma R configurada, contas R serão ignoradas")
	}

	for _, acc := range accounts {
		if target.Before(utils.CivilDate(acc.StartDate)) {
			counts.add(func(sum *domain.RunSummary) { sum.Skipped++ })
			s.metrics.RecordUnit(DailyStatsSyncRun, string(acc.Platform), metrics.OutcomeSkipped)
			events.emit(accountEvent(acc, target, "conta ainda não iniciada, ignorando", false))
			continue
		}

		switch acc.Platform {
		case domain.PlatformR:
			if !rReady {
				counts.add(func(sum *domain.RunSummary) { sum.Skipped++ })
				s.metrics.RecordUnit(DailyStatsSyncRun, string(acc.Platform), metrics.OutcomeSkipped)
				events.emit(accountEvent(acc, target, "sem credencial da plataforma R, ignorando", true))
				continue
			}
			rAccounts = append(rAccounts, acc)
		case domain.PlatformD:
			dAccounts = append(dAccounts, acc)
		default:
			counts.add(func(sum *domain.RunSummary) { sum.Skipped++ })
			events.emit(accountEvent(acc, target, fmt.Sprintf("plataforma desconhecida %q", acc.Platform), true))
		}
	}

	return rAccounts, dAccounts
}

type credentialGroup struct {
	credential string
	accounts   []*domain.AdAccount
}

// groupByCredential agrupa as contas D pelo token compartilhado, mantendo a ordem de chegada
func (s *DailyStatsSyncService) groupByCredential(ctx context.Context, accounts []*domain.AdAccount, counts *tally, events *emitter) ([]*credentialGroup, error) {
	groups := make([]*credentialGroup, 0)
	index := make(map[string]*credentialGroup)

	for _, acc := range accounts {
		token, err := s.credentials.TokenFor(ctx, acc)
		if err != nil {
			if errors.Is(err, domain.ErrCredentialMissing) {
				counts.add(func(sum *domain.RunSummary) { sum.Skipped++ })
				s.metrics.RecordUnit(DailyStatsSyncRun, string(acc.Platform), metrics.OutcomeSkipped)
				events.emit(domain.ProgressEvent{
					Message:   fmt.Sprintf("Conta %s sem credencial, ignorando", acc.ExternalID),
					Error:     true,
					Kind:      domain.EventKindAccount,
					AccountID: acc.ExternalID,
				})
				continue
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrRegistryUnavailable, err)
		}

		group, ok := index[token]
		if !ok {
			group = &credentialGroup{credential: token}
			index[token] = group
			groups = append(groups, group)
		}
		group.accounts = append(group.accounts, acc)
	}

	return groups, nil
}

func (s *DailyStatsSyncService) process(ctx context.Context, credential string, units []*domain.WorkUnit, counts *tally, events *emitter, abort func(error)) {
	rows, err := s.engine.syncUnits(ctx, credential, units)
	counts.add(func(sum *domain.RunSummary) { sum.Rows += rows })

	if err != nil && domain.IsFatal(err) {
		abort(err)
	}

	for _, u := range units {
		date := u.Start
		if u.Done() {
			counts.add(func(sum *domain.RunSummary) { sum.Succeeded++ })
			events.emit(accountEvent(u.Account, date, "sincronizada", false))
			continue
		}

		counts.add(func(sum *domain.RunSummary) { sum.Failed++ })
		cause := u.LastErr
		if cause == nil {
			cause = err
		}
		msg := "não processada"
		if cause != nil {
			msg = fmt.Sprintf("falha após %d tentativa(s): %v", u.Attempts, cause)
		}
		events.emit(accountEvent(u.Account, date, msg, true))
	}
}

func (s *DailyStatsSyncService) reportUndispatched(units []*domain.WorkUnit, counts *tally, events *emitter) {
	for _, u := range units {
		counts.add(func(sum *domain.RunSummary) { sum.Skipped++ })
		s.metrics.RecordUnit(DailyStatsSyncRun, string(u.Account.Platform), metrics.OutcomeSkipped)
		events.emit(accountEvent(u.Account, u.Start, "não despachada, execução interrompida", true))
	}
}

func accountEvent(acc *domain.AdAccount, date time.Time, msg string, failed bool) domain.ProgressEvent {
	return domain.ProgressEvent{
		Message:   fmt.Sprintf("[%s] %s %s: %s", acc.Platform, acc.ExternalID, date.Format(time.DateOnly), msg),
		Error:     failed,
		Kind:      domain.EventKindAccount,
		AccountID: acc.ExternalID,
		Date:      date.Format(time.DateOnly),
	}
}

// GetStatus retorna o status atual do agendador
func (s *DailyStatsSyncService) GetStatus() map[string]any {
	status := s.guard.status()
	status["sync_enabled"] = s.config.SyncEnabled
	status["sync_cron"] = s.config.CronSchedule
	status["r_workers"] = s.config.RWorkers
	status["d_workers"] = s.config.DWorkers
	status["max_attempts"] = s.config.MaxAttempts
	return status
}
