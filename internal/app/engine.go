package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"trivia-session-service/internal/domain"
	"trivia-session-service/internal/metrics"
)

// SessionRepository owns the authoritative session and player maps.
// Player records are scoped to a session: the same player id in two sessions has two
// independent records, stored under player.SessionID. Returned pointers are shared; callers mutate them under the engine's session lock and
// call the matching Upsert so cache-backed stores can write through.
type SessionRepository interface {
	GetSession(ctx context.Context, sessionID string) (*domain.Session, bool)
	UpsertSession(ctx context.Context, session *domain.Session)
	DeleteSession(ctx context.Context, sessionID string)
	GetPlayer(ctx context.Context, sessionID, playerID string) (*domain.Player, bool)
	UpsertPlayer(ctx context.Context, player *domain.Player)
}

// QuestionBank supplies the read-only list of quiz items.
type QuestionBank interface {
	List(ctx context.Context) ([]domain.Question, error)
}

// Connection is a live socket handle.
type Connection interface {
	ID() string
	Send(msg domain.Message) error
	Close(code int, reason string)
}

// Registry maps players to their live socket and fans messages out to a roster.
type Registry interface {
	Register(playerID string, conn Connection)
	Unregister(playerID string, conn Connection) bool
	IsConnected(playerID string) bool
	SendTo(playerID string, msg domain.Message) bool
	BroadcastToGame(roster []string, msg domain.Message, excludePlayerID string) int
}

// Publisher mirrors session events to other processes. Failures must not reach the engine.
type Publisher interface {
	Publish(ctx context.Context, sessionID string, msg domain.Message)
}

// Finalize triggers, used for logs and metrics.
const (
	triggerTimer       = "timer"
	triggerAllAnswered = "all_answered"
	triggerRequest     = "request"
	triggerJoin        = "join"
	triggerAdvance     = "advance"
)

// Options configures gameplay.
type Options struct {
	RoundDuration      time.Duration
	DefaultTotalRounds int
	RosterPreviewLimit int
	// AutoAdvanceDelay > 0 starts the next round that long after a round is finalized.
	AutoAdvanceDelay time.Duration
}

// DefaultOptions matches the production configuration.
func DefaultOptions() Options {
	return Options{
		RoundDuration:      10 * time.Second,
		DefaultTotalRounds: 12,
		RosterPreviewLimit: 15,
	}
}

// JoinRequest carries the fields of an inbound join.
type JoinRequest struct {
	SessionID         string
	PlayerID          string
	DisplayName       string
	AvatarRef         string
	DeviceFingerprint string
	TotalRounds       *int
}

// Engine is the session state machine. Every operation on a session runs under that
// session's lock, so handlers and timer callbacks never interleave on one session.
type Engine struct {
	sessions  SessionRepository
	bank      QuestionBank
	registry  Registry
	publisher Publisher
	metrics   *metrics.Metrics
	timers    *Scheduler
	logger    zerolog.Logger
	opts      Options
	now       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithClock overrides the wall clock, for deterministic tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithRand overrides the shuffle and draw source.
func WithRand(rng *rand.Rand) EngineOption {
	return func(e *Engine) { e.rng = rng }
}

// WithPublisher attaches the cross-process pub/sub hook.
func WithPublisher(p Publisher) EngineOption {
	return func(e *Engine) { e.publisher = p }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(sessions SessionRepository, bank QuestionBank, registry Registry, opts Options, logger zerolog.Logger, options ...EngineOption) *Engine {
	defaults := DefaultOptions()
	if opts.RoundDuration <= 0 {
		opts.RoundDuration = defaults.RoundDuration
	}
	if opts.DefaultTotalRounds <= 0 {
		opts.DefaultTotalRounds = defaults.DefaultTotalRounds
	}
	if opts.RosterPreviewLimit <= 0 {
		opts.RosterPreviewLimit = defaults.RosterPreviewLimit
	}
	e := &Engine{
		sessions: sessions,
		bank:     bank,
		registry: registry,
		timers:   NewScheduler(),
		logger:   logger.With().Str("component", "session_engine").Logger(),
		opts:     opts,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Close cancels every outstanding round timer.
func (e *Engine) Close() {
	e.timers.Stop()
}

// Join attaches a player and its socket to a session, creating the session on first join.
func (e *Engine) Join(ctx context.Context, conn Connection, req JoinRequest) error {
	switch {
	case req.SessionID == "":
		return fmt.Errorf("sessionId: %w", domain.ErrMissingField)
	case req.PlayerID == "":
		return fmt.Errorf("playerId: %w", domain.ErrMissingField)
	case req.DeviceFingerprint == "":
		return fmt.Errorf("deviceFingerprint: %w", domain.ErrMissingField)
	}

	unlock := e.lock(req.SessionID)
	defer unlock()

	log := e.logger.With().Str("session_id", req.SessionID).Str("player_id", req.PlayerID).Logger()

	session, ok := e.sessions.GetSession(ctx, req.SessionID)
	if !ok {
		bank, err := e.bank.List(ctx)
		if err != nil {
			return fmt.Errorf("load question bank: %w", err)
		}
		total := e.opts.DefaultTotalRounds
		if req.TotalRounds != nil && *req.TotalRounds > 0 {
			total = *req.TotalRounds
		}
		if total > len(bank) {
			total = len(bank)
		}
		session = domain.NewSession(req.SessionID, total, e.opts.RoundDuration.Milliseconds())
		e.metrics.SessionCreated()
		log.Info().Int("total_rounds", total).Msg("session created")
	}

	if owner, taken := session.DeviceOwner(req.DeviceFingerprint); taken && owner != req.PlayerID {
		if e.registry.IsConnected(owner) {
			log.Info().Str("device_owner", owner).Msg("join rejected: device already in session")
			return domain.ErrDeviceInUse
		}
		// The owner is gone; they stay on the roster but lose the device binding.
		log.Info().Str("device_owner", owner).Msg("device taken over from disconnected player")
	}

	player, ok := e.sessions.GetPlayer(ctx, session.ID, req.PlayerID)
	if !ok {
		player = &domain.Player{ID: req.PlayerID, SessionID: session.ID}
	}
	if req.DisplayName != "" {
		player.DisplayName = req.DisplayName
	}
	if req.AvatarRef != "" {
		player.AvatarRef = req.AvatarRef
	}
	for device, owner := range session.Devices {
		if owner == player.ID && device != req.DeviceFingerprint {
			delete(session.Devices, device)
		}
	}
	player.DeviceFingerprint = req.DeviceFingerprint
	session.Devices[req.DeviceFingerprint] = player.ID
	rejoin := !session.AddPlayer(player.ID)

	e.sessions.UpsertPlayer(ctx, player)
	e.registry.Register(player.ID, conn)

	if session.Status == domain.StatusPlaying {
		if _, recorded := session.Record(session.CurrentRound); !recorded {
			if session.RoundExpired(e.nowMillis()) {
				e.finalize(ctx, session, false, triggerJoin)
			} else if !e.timers.Pending(session.ID) {
				// Session came back from the cache without its timer.
				e.armRoundTimer(session.ID, session.CurrentRound, time.Duration(session.RemainingMillis(e.nowMillis()))*time.Millisecond)
			}
		}
	}
	e.sessions.UpsertSession(ctx, session)

	players := e.loadPlayers(ctx, session)
	e.registry.SendTo(player.ID, domain.Message{Type: domain.TypeGameState, Payload: e.snapshot(session, player.ID, players)})

	e.broadcast(ctx, session, domain.Message{Type: domain.TypePlayerJoined, Payload: domain.PlayerJoinedPayload{
		SessionID:    session.ID,
		Player:       e.view(player),
		Players:      e.roster(session, players, e.opts.RosterPreviewLimit),
		TotalPlayers: len(session.PlayerIDs),
	}}, player.ID)

	log.Info().Bool("rejoin", rejoin).Str("status", string(session.Status)).Int("players", len(session.PlayerIDs)).Msg("player joined")
	return nil
}

// StartGame moves a waiting session into play and opens round 1.
func (e *Engine) StartGame(ctx context.Context, sessionID string) error {
	unlock := e.lock(sessionID)
	defer unlock()

	session, ok := e.sessions.GetSession(ctx, sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.Status != domain.StatusWaiting {
		return fmt.Errorf("start game while %s: %w", session.Status, domain.ErrInvalidState)
	}
	bank, err := e.bank.List(ctx)
	if err != nil {
		return fmt.Errorf("load question bank: %w", err)
	}

	session.Status = domain.StatusPlaying
	session.StartedAtMillis = e.nowMillis()
	session.CurrentRound = 1

	if session.TotalRounds < 1 || !e.beginRound(session, bank) {
		e.finishEarly(ctx, session)
		return nil
	}
	e.sessions.UpsertSession(ctx, session)
	e.broadcast(ctx, session, domain.Message{Type: domain.TypeGameStarted, Payload: e.questionPayload(session)}, "")

	e.logger.Info().Str("session_id", sessionID).Int("players", len(session.PlayerIDs)).Int("total_rounds", session.TotalRounds).Msg("game started")
	return nil
}

// SubmitAnswer records a player's choice for the open round. The last submission wins.
// When every roster member has answered, the round is finalized immediately.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID, playerID string, choiceIndex int) error {
	unlock := e.lock(sessionID)
	defer unlock()

	session, ok := e.sessions.GetSession(ctx, sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.Status != domain.StatusPlaying || session.CurrentQuestion == nil {
		return fmt.Errorf("submit answer while %s: %w", session.Status, domain.ErrInvalidState)
	}
	if !session.HasPlayer(playerID) {
		return domain.ErrPlayerNotFound
	}
	if choiceIndex < 0 || choiceIndex >= len(session.CurrentQuestion.Options) {
		return domain.ErrInvalidChoice
	}
	round := session.CurrentRound
	now := e.nowMillis()
	if _, recorded := session.Record(round); recorded || session.RoundExpired(now) {
		return fmt.Errorf("round %d: %w", round, domain.ErrRoundClosed)
	}

	session.PendingAnswers[playerID] = domain.PendingAnswer{
		ChoiceIndex:       choiceIndex,
		Round:             round,
		SubmittedAtMillis: now,
	}

	answered := e.answeredOnRoster(session, round)
	if answered >= len(session.PlayerIDs) {
		e.finalize(ctx, session, true, triggerAllAnswered)
		e.sessions.UpsertSession(ctx, session)
		return nil
	}

	e.sessions.UpsertSession(ctx, session)
	e.broadcast(ctx, session, domain.Message{Type: domain.TypeAnswerReceived, Payload: domain.AnswerReceivedPayload{
		SessionID:     session.ID,
		Round:         round,
		AnsweredCount: answered,
		TotalPlayers:  len(session.PlayerIDs),
	}}, "")
	return nil
}

// NextRound advances to the next round, finishing the game after the last one.
// A non-zero expectedRound must match the current round, otherwise the request is stale.
// An open round is scored before it is left so that every round has a history record.
func (e *Engine) NextRound(ctx context.Context, sessionID string, expectedRound int) error {
	unlock := e.lock(sessionID)
	defer unlock()

	session, ok := e.sessions.GetSession(ctx, sessionID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.Status != domain.StatusPlaying {
		return fmt.Errorf("next round while %s: %w", session.Status, domain.ErrInvalidState)
	}
	if expectedRound > 0 && expectedRound != session.CurrentRound {
		return fmt.Errorf("next round from %d, current %d: %w", expectedRound, session.CurrentRound, domain.ErrStaleRound)
	}
	return e.advance(ctx, session)
}

// RequestRoundResults returns the results of the current round, finalizing it if its
// clock has run out. It returns nil while the round is still open.
func (e *Engine) RequestRoundResults(ctx context.Context, sessionID, playerID string) (*domain.Message, error) {
	unlock := e.lock(sessionID)
	defer unlock()

	session, ok := e.sessions.GetSession(ctx, sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	var out Outcome
	switch session.Status {
	case domain.StatusWaiting:
		return nil, nil
	case domain.StatusFinished:
		out = FinalizeRound(session, e.loadPlayers(ctx, session), e.nowMillis(), false)
	default:
		if _, recorded := session.Record(session.CurrentRound); !recorded {
			if !session.RoundExpired(e.nowMillis()) {
				return nil, nil
			}
			out = e.finalizeExcept(ctx, session, false, triggerRequest, playerID)
			e.sessions.UpsertSession(ctx, session)
		} else {
			out = FinalizeRound(session, e.loadPlayers(ctx, session), e.nowMillis(), false)
		}
	}

	msg, ok := out.Message()
	if !ok {
		return nil, nil
	}
	return &msg, nil
}

// Leave handles a closed socket. Only the player's current socket counts; a socket that was
// already replaced by a reconnect is ignored. Waiting sessions also drop the player from the roster.
func (e *Engine) Leave(ctx context.Context, sessionID, playerID string, conn Connection) {
	if !e.registry.Unregister(playerID, conn) {
		return
	}

	unlock := e.lock(sessionID)
	defer unlock()

	session, ok := e.sessions.GetSession(ctx, sessionID)
	if !ok {
		return
	}
	if session.Status == domain.StatusWaiting && session.RemovePlayer(playerID) {
		e.sessions.UpsertSession(ctx, session)
	}

	connected := 0
	for _, id := range session.PlayerIDs {
		if e.registry.IsConnected(id) {
			connected++
		}
	}
	e.broadcast(ctx, session, domain.Message{Type: domain.TypePlayerLeft, Payload: domain.PlayerLeftPayload{
		SessionID:        session.ID,
		PlayerID:         playerID,
		TotalPlayers:     len(session.PlayerIDs),
		ConnectedPlayers: connected,
	}}, playerID)

	e.logger.Info().Str("session_id", sessionID).Str("player_id", playerID).Msg("player left")
}

// onRoundTimer is the Round Timer callback. It re-reads the session because anything
// may have happened since the timer was armed.
func (e *Engine) onRoundTimer(sessionID string, round int) {
	ctx := context.Background()
	unlock := e.lock(sessionID)
	defer unlock()

	session, ok := e.sessions.GetSession(ctx, sessionID)
	if !ok || session.Status != domain.StatusPlaying || session.CurrentRound != round {
		return
	}
	if _, recorded := session.Record(round); recorded {
		return
	}
	if now := e.nowMillis(); !session.RoundExpired(now) {
		e.armRoundTimer(sessionID, round, time.Duration(session.RemainingMillis(now))*time.Millisecond)
		return
	}
	e.finalize(ctx, session, false, triggerTimer)
	e.sessions.UpsertSession(ctx, session)
}

// onAutoAdvance starts the next round if nobody advanced past fromRound in the meantime.
func (e *Engine) onAutoAdvance(sessionID string, fromRound int) {
	ctx := context.Background()
	unlock := e.lock(sessionID)
	defer unlock()

	session, ok := e.sessions.GetSession(ctx, sessionID)
	if !ok || session.Status != domain.StatusPlaying || session.CurrentRound != fromRound {
		return
	}
	if err := e.advance(ctx, session); err != nil {
		e.logger.Warn().Err(err).Str("session_id", sessionID).Msg("auto advance failed")
	}
}

func (e *Engine) advance(ctx context.Context, session *domain.Session) error {
	if _, recorded := session.Record(session.CurrentRound); !recorded && session.CurrentQuestion != nil {
		e.finalize(ctx, session, true, triggerAdvance)
		if session.Status == domain.StatusFinished {
			e.sessions.UpsertSession(ctx, session)
			return nil
		}
	}

	bank, err := e.bank.List(ctx)
	if err != nil {
		return fmt.Errorf("load question bank: %w", err)
	}

	session.CurrentRound++
	if session.CurrentRound > session.TotalRounds || !e.beginRound(session, bank) {
		e.finishEarly(ctx, session)
		return nil
	}
	e.sessions.UpsertSession(ctx, session)
	e.broadcast(ctx, session, domain.Message{Type: domain.TypeNextRound, Payload: e.questionPayload(session)}, "")

	e.logger.Debug().Str("session_id", session.ID).Int("round", session.CurrentRound).Msg("round started")
	return nil
}

// beginRound draws, randomizes and marks an unused question for the current round and
// arms its timer. It returns false when the bank has no unused question left.
func (e *Engine) beginRound(session *domain.Session, bank []domain.Question) bool {
	e.rngMu.Lock()
	q, ok := pickUnused(bank, session, e.rng)
	var randomized domain.RandomizedQuestion
	if ok {
		randomized = Randomize(q, e.rng)
	}
	e.rngMu.Unlock()
	if !ok {
		return false
	}

	session.MarkQuestionUsed(q.ID)
	session.CurrentQuestion = &randomized
	session.PendingAnswers = make(map[string]domain.PendingAnswer)
	session.RoundStartedAtMillis = e.nowMillis()
	session.RoundDurationMillis = e.opts.RoundDuration.Milliseconds()

	e.armRoundTimer(session.ID, session.CurrentRound, e.opts.RoundDuration)
	return true
}

// finishEarly ends a game that ran out of questions before its last round.
func (e *Engine) finishEarly(ctx context.Context, session *domain.Session) {
	e.timers.Cancel(session.ID)
	// CurrentRound points at the round that could not be opened.
	session.CurrentRound--
	players := e.loadPlayers(ctx, session)
	finishGame(session, players)
	e.sessions.UpsertSession(ctx, session)
	e.metrics.GameFinished()

	msg, _ := FinalizeRound(session, players, e.nowMillis(), false).Message()
	e.broadcast(ctx, session, msg, "")
	e.logger.Info().Str("session_id", session.ID).Int("rounds_played", len(session.RoundHistory)).Msg("game finished without remaining questions")
}

func (e *Engine) finalize(ctx context.Context, session *domain.Session, force bool, trigger string) Outcome {
	return e.finalizeExcept(ctx, session, force, trigger, "")
}

// finalizeExcept runs FinalizeRound and, when it recorded the round, persists scores and
// pushes the outcome to the roster (minus exclude, who receives it as a direct reply).
func (e *Engine) finalizeExcept(ctx context.Context, session *domain.Session, force bool, trigger, exclude string) Outcome {
	players := e.loadPlayers(ctx, session)
	out := FinalizeRound(session, players, e.nowMillis(), force)
	if !out.Fresh {
		return out
	}
	e.timers.Cancel(session.ID)

	for _, id := range session.PlayerIDs {
		if p := players[id]; p != nil {
			e.sessions.UpsertPlayer(ctx, p)
		}
	}
	e.metrics.RoundFinalized(trigger)

	log := e.logger.Info().Str("session_id", session.ID).Int("round", out.Round).Str("trigger", trigger)
	if msg, ok := out.Message(); ok {
		e.broadcast(ctx, session, msg, exclude)
	}
	if out.Finished != nil {
		e.metrics.GameFinished()
		log.Msg("final round finalized, game finished")
		return out
	}
	log.Msg("round finalized")

	if e.opts.AutoAdvanceDelay > 0 {
		round := out.Round
		id := session.ID
		e.timers.Schedule(id, e.opts.AutoAdvanceDelay, func() { e.onAutoAdvance(id, round) })
	}
	return out
}

func (e *Engine) armRoundTimer(sessionID string, round int, d time.Duration) {
	e.timers.Schedule(sessionID, d, func() { e.onRoundTimer(sessionID, round) })
}

func (e *Engine) broadcast(ctx context.Context, session *domain.Session, msg domain.Message, exclude string) {
	delivered := e.registry.BroadcastToGame(session.PlayerIDs, msg, exclude)
	e.metrics.OutboundMessages(msg.Type, delivered)
	if e.publisher != nil {
		e.publisher.Publish(ctx, session.ID, msg)
	}
}

func (e *Engine) answeredOnRoster(session *domain.Session, round int) int {
	n := 0
	for _, id := range session.PlayerIDs {
		if ans, ok := session.PendingAnswers[id]; ok && ans.Round == round {
			n++
		}
	}
	return n
}

// loadPlayers fetches every player the session references.
func (e *Engine) loadPlayers(ctx context.Context, session *domain.Session) map[string]*domain.Player {
	players := make(map[string]*domain.Player, len(session.PlayerIDs))
	add := func(id string) {
		if _, ok := players[id]; ok {
			return
		}
		if p, ok := e.sessions.GetPlayer(ctx, session.ID, id); ok {
			players[id] = p
			return
		}
		players[id] = &domain.Player{ID: id, SessionID: session.ID}
	}
	for _, id := range session.PlayerIDs {
		add(id)
	}
	for id := range session.PendingAnswers {
		add(id)
	}
	for _, rec := range session.RoundHistory {
		for id := range rec.PerPlayerAnswer {
			add(id)
		}
	}
	return players
}

func (e *Engine) snapshot(session *domain.Session, playerID string, players map[string]*domain.Player) domain.GameStatePayload {
	now := e.nowMillis()
	state := domain.GameStatePayload{
		SessionID:           session.ID,
		PlayerID:            playerID,
		Status:              session.Status,
		CurrentRound:        session.CurrentRound,
		TotalRounds:         session.TotalRounds,
		Players:             e.roster(session, players, 0),
		TotalPlayers:        len(session.PlayerIDs),
		RoundDurationMillis: session.RoundDurationMillis,
	}

	switch session.Status {
	case domain.StatusPlaying:
		if rec, recorded := session.Record(session.CurrentRound); recorded {
			results := resultsFromRecord(session, rec, players)
			state.LastResults = &results
		} else if session.CurrentQuestion != nil && !session.RoundExpired(now) {
			q := Sanitize(*session.CurrentQuestion)
			remaining := session.RemainingMillis(now)
			state.Question = &q
			state.RoundStartedAt = session.RoundStartedAtMillis
			state.RemainingTimeMillis = &remaining
			ans, ok := session.PendingAnswers[playerID]
			state.HasAnswered = ok && ans.Round == session.CurrentRound
		}
	case domain.StatusFinished:
		state.Summary = session.Summary
		if n := len(session.RoundHistory); n > 0 {
			results := resultsFromRecord(session, session.RoundHistory[n-1], players)
			state.LastResults = &results
		}
	}
	return state
}

func (e *Engine) questionPayload(session *domain.Session) domain.QuestionPayload {
	return domain.QuestionPayload{
		SessionID:           session.ID,
		Round:               session.CurrentRound,
		TotalRounds:         session.TotalRounds,
		Question:            Sanitize(*session.CurrentQuestion),
		RoundStartedAt:      session.RoundStartedAtMillis,
		RoundDurationMillis: session.RoundDurationMillis,
		RemainingTimeMillis: session.RemainingMillis(e.nowMillis()),
	}
}

// roster lists player views in roster order; limit <= 0 means no cap.
func (e *Engine) roster(session *domain.Session, players map[string]*domain.Player, limit int) []domain.PlayerView {
	n := len(session.PlayerIDs)
	if limit > 0 && n > limit {
		n = limit
	}
	views := make([]domain.PlayerView, 0, n)
	for _, id := range session.PlayerIDs[:n] {
		p := players[id]
		if p == nil {
			p = &domain.Player{ID: id}
		}
		views = append(views, e.view(p))
	}
	return views
}

func (e *Engine) view(p *domain.Player) domain.PlayerView {
	return domain.PlayerView{
		ID:          p.ID,
		DisplayName: p.DisplayName,
		AvatarRef:   p.AvatarRef,
		Score:       p.Score,
		Connected:   e.registry.IsConnected(p.ID),
	}
}

func (e *Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}

func (e *Engine) lock(sessionID string) func() {
	e.locksMu.Lock()
	mu, ok := e.locks[sessionID]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[sessionID] = mu
	}
	e.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}
