// Package orchestrator runs the group key agreement for a whole ring inside one process.
//
// Run executes one handler per party concurrently, connected through a broadcast.Hub.
// RunSequential drives the same handlers from a single goroutine, in ring order, which makes a run
// reproducible given a deterministic randomness source.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/ringpake/gka/pkg/broadcast"
	"github.com/ringpake/gka/pkg/config"
	"github.com/ringpake/gka/pkg/pairwise"
	"github.com/ringpake/gka/pkg/party"
	"github.com/ringpake/gka/pkg/pool"
	"github.com/ringpake/gka/pkg/protocol"
	"github.com/ringpake/gka/protocols/gka"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Outcome is the result of a run for one party.
type Outcome struct {
	ID party.ID
	// Result is nil if the run failed for this party.
	Result   *gka.Result
	Accepted bool
	// Reason and Err are set if the run failed for this party.
	Reason gka.Reason
	Err    error
}

// Report gathers the outcome of every party of the ring.
type Report struct {
	RunID    uuid.UUID
	Ring     party.IDSlice
	Outcomes map[party.ID]*Outcome
}

// Accepted returns true if every party of the ring accepted the same session key.
func (r *Report) Accepted() bool {
	_, err := r.SessionKey()
	return err == nil
}

// SessionKey returns the session key agreed on by every party of the ring.
func (r *Report) SessionKey() (string, error) {
	var key string
	for _, id := range r.Ring {
		o, ok := r.Outcomes[id]
		if !ok {
			return "", fmt.Errorf("orchestrator: %w: no outcome for party %s", gka.ErrMissingParticipant, id)
		}
		if !o.Accepted || o.Result == nil {
			return "", fmt.Errorf("orchestrator: party %s did not accept: %s", id, o.Reason)
		}
		if key == "" {
			key = o.Result.SessionKey
		} else if key != o.Result.SessionKey {
			return "", fmt.Errorf("orchestrator: %w: party %s derived a different key", gka.ErrIntegrity, id)
		}
	}
	return key, nil
}

// Reasons returns the distinct failure reasons among all parties.
func (r *Report) Reasons() []gka.Reason {
	var reasons []gka.Reason
	seen := map[string]bool{}
	for _, id := range r.Ring {
		o, ok := r.Outcomes[id]
		if !ok || o.Err == nil {
			continue
		}
		if s := o.Reason.String(); !seen[s] {
			seen[s] = true
			reasons = append(reasons, o.Reason)
		}
	}
	return reasons
}

type options struct {
	log          zerolog.Logger
	hasLog       bool
	rand         io.Reader
	participants party.IDSlice
}

// Option configures a run.
type Option func(o *options)

// WithLogger replaces the logger built from the configuration.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
		o.hasLog = true
	}
}

// WithRand sets the randomness source shared by all parties.
func WithRand(rand io.Reader) Option {
	return func(o *options) { o.rand = rand }
}

// WithParticipants only runs the given parties of the ring. The others never send anything,
// as if they had dropped out.
func WithParticipants(ids ...party.ID) Option {
	return func(o *options) { o.participants = party.NewIDSlice(ids) }
}

type run struct {
	id      uuid.UUID
	cfg     config.Config
	ring    party.IDSlice
	secrets map[party.ID]pairwise.Secrets
	opts    options
	log     zerolog.Logger
	pool    *pool.Pool
}

func newRun(cfg config.Config, ring []party.ID, secrets map[party.ID]pairwise.Secrets, opts []Option) (*run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ids := party.NewIDSlice(ring)
	if err := ids.ValidateRing(); err != nil {
		return nil, fmt.Errorf("orchestrator: %w: %v", gka.ErrMalformedInput, err)
	}

	o := options{participants: ids}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasLog {
		o.log = cfg.Logger(nil)
	}
	for _, id := range o.participants {
		if !ids.Contains(id) {
			return nil, fmt.Errorf("orchestrator: %w: participant %s is not in the ring", gka.ErrMalformedInput, id)
		}
	}

	r := &run{
		id:      uuid.New(),
		cfg:     cfg,
		ring:    ids,
		secrets: secrets,
		opts:    o,
	}
	r.log = o.log.With().Str("run", r.id.String()).Logger()
	if cfg.Workers > 0 {
		r.pool = pool.NewPool(cfg.Workers)
	}
	return r, nil
}

func (r *run) tearDown() {
	r.pool.TearDown()
}

func (r *run) handler(id party.ID, rand io.Reader) (*protocol.MultiHandler, error) {
	secrets, ok := r.secrets[id]
	if !ok {
		return nil, fmt.Errorf("orchestrator: %w: no pairwise secrets for party %s", gka.ErrMalformedInput, id)
	}
	start := gka.Start(id, r.ring, secrets, gka.Options{
		Rand:           rand,
		CommitmentBits: r.cfg.CommitmentBits,
		Pool:           r.pool,
	})
	return protocol.NewMultiHandler(start, r.id[:], protocol.WithLogger(r.log))
}

func (r *run) report(outcomes map[party.ID]*Outcome) *Report {
	report := &Report{
		RunID:    r.id,
		Ring:     r.ring,
		Outcomes: outcomes,
	}
	for _, id := range r.ring {
		o, ok := outcomes[id]
		if !ok {
			continue
		}
		if o.Err != nil {
			r.log.Warn().Stringer("party", id).Stringer("reason", o.Reason).Err(o.Err).Msg("party rejected the session")
		} else {
			r.log.Debug().Stringer("party", id).Str("session_id", o.Result.SessionID).Msg("party accepted the session")
		}
	}
	r.log.Info().Bool("accepted", report.Accepted()).Msg("run finished")
	return report
}

// Run executes the group key agreement for ring, with one goroutine per party, and waits until every party has
// either derived the key or aborted. Parties whose broadcasts are missing when cfg.Timeout expires are blamed.
//
// The returned error only reports an invalid configuration or ring: failures of the run itself are reported
// per party in the Report.
func Run(ctx context.Context, cfg config.Config, ring []party.ID, secrets map[party.ID]pairwise.Secrets, opts ...Option) (*Report, error) {
	r, err := newRun(cfg, ring, secrets, opts)
	if err != nil {
		return nil, err
	}
	defer r.tearDown()

	rand := r.opts.rand
	if rand != nil {
		rand = pool.NewLockedReader(rand)
	}

	r.log.Info().Int("parties", len(r.ring)).Int("participants", len(r.opts.participants)).Dur("timeout", cfg.Timeout).Msg("run started")

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	// every party receives two broadcasts from every other party
	hub := broadcast.NewHub(r.ring, 2*len(r.ring))
	defer hub.Close()
	for _, id := range r.ring {
		if !r.opts.participants.Contains(id) {
			hub.Leave(id)
		}
	}

	var (
		mtx      sync.Mutex
		outcomes = make(map[party.ID]*Outcome, len(r.ring))
		errGroup errgroup.Group
	)
	for _, id := range r.opts.participants {
		id := id
		errGroup.Go(func() error {
			var o *Outcome
			h, err := r.handler(id, rand)
			if err != nil {
				hub.Leave(id)
				o = failed(id, err)
			} else {
				err = Participate(ctx, h, id, hub)
				o = outcome(id, h)
			}
			mtx.Lock()
			outcomes[id] = o
			mtx.Unlock()
			return err
		})
	}
	if err = errGroup.Wait(); err != nil {
		r.log.Error().Err(err).Msg("delivery failed")
	}
	return r.report(outcomes), nil
}

// Participate relays messages between h and the hub until h finishes.
// When ctx is done first, h is aborted, blaming the parties it is still waiting for.
func Participate(ctx context.Context, h *protocol.MultiHandler, id party.ID, hub *broadcast.Hub) error {
	incoming := hub.Next(id)
	for {
		select {
		// outgoing messages
		case msg, ok := <-h.Listen():
			if !ok {
				// the channel was closed, indicating that the protocol is done executing.
				return nil
			}
			if err := hub.Send(ctx, msg); err != nil {
				h.Abort(missing(err))
				if errors.Is(err, broadcast.ErrClosed) {
					return nil
				}
				return fmt.Errorf("orchestrator: party %s: %w", id, err)
			}

		// incoming messages
		case msg, ok := <-incoming:
			if !ok {
				incoming = nil
				continue
			}
			h.Accept(msg)

		case <-ctx.Done():
			h.Abort(missing(ctx.Err()))
			return nil
		}
	}
}

// RunSequential executes the group key agreement for ring on the calling goroutine.
// Handlers are created, and their messages delivered, in ring order, so that a run only depends on
// the secrets and the randomness source.
func RunSequential(cfg config.Config, ring []party.ID, secrets map[party.ID]pairwise.Secrets, opts ...Option) (*Report, error) {
	r, err := newRun(cfg, ring, secrets, opts)
	if err != nil {
		return nil, err
	}
	defer r.tearDown()

	r.log.Info().Int("parties", len(r.ring)).Int("participants", len(r.opts.participants)).Msg("sequential run started")

	outcomes := make(map[party.ID]*Outcome, len(r.ring))
	handlers := make(map[party.ID]*protocol.MultiHandler, len(r.ring))
	var running party.IDSlice
	for _, id := range r.opts.participants {
		h, err := r.handler(id, r.opts.rand)
		if err != nil {
			outcomes[id] = failed(id, err)
			continue
		}
		handlers[id] = h
		running = append(running, id)
	}

	for progress := true; progress; {
		progress = false
		for _, from := range running {
			for _, msg := range drain(handlers[from]) {
				progress = true
				for _, to := range running {
					if msg.IsFor(to) {
						handlers[to].Accept(msg)
					}
				}
			}
		}
	}

	// nothing is in flight anymore, so whoever is still waiting will wait forever
	for _, id := range running {
		h := handlers[id]
		h.Abort(missing(errors.New("no more messages to deliver")))
		outcomes[id] = outcome(id, h)
	}
	return r.report(outcomes), nil
}

// drain returns the messages currently queued by h, without blocking.
func drain(h *protocol.MultiHandler) []*protocol.Message {
	var msgs []*protocol.Message
	out := h.Listen()
	for {
		select {
		case msg, ok := <-out:
			if !ok {
				return msgs
			}
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func missing(err error) error {
	return fmt.Errorf("%w: %w", gka.ErrMissingParticipant, err)
}

func failed(id party.ID, err error) *Outcome {
	reason := gka.Classify(err)
	if errors.Is(err, gka.ErrMalformedInput) && len(reason.Participants) == 0 {
		reason.Participants = party.IDSlice{id}
	}
	return &Outcome{ID: id, Reason: reason, Err: err}
}

func outcome(id party.ID, h *protocol.MultiHandler) *Outcome {
	res, err := h.Result()
	if err != nil {
		var messageErr protocol.MessageError
		if errors.As(err, &messageErr) && !errors.Is(err, gka.ErrMalformedInput) {
			err = fmt.Errorf("%w: %w", gka.ErrMalformedInput, err)
		}
		return &Outcome{ID: id, Reason: gka.Classify(err), Err: err}
	}
	result, ok := res.(*gka.Result)
	if !ok {
		err = fmt.Errorf("orchestrator: unexpected result type %T", res)
		return &Outcome{ID: id, Reason: gka.Classify(err), Err: err}
	}
	return &Outcome{ID: id, Result: result, Accepted: result.Accepted}
}
