package orchestrator

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ringpake/gka/internal/round"
	"github.com/ringpake/gka/internal/test"
	"github.com/ringpake/gka/pkg/broadcast"
	"github.com/ringpake/gka/pkg/config"
	"github.com/ringpake/gka/pkg/hash"
	"github.com/ringpake/gka/pkg/pairwise"
	"github.com/ringpake/gka/pkg/party"
	"github.com/ringpake/gka/pkg/protocol"
	"github.com/ringpake/gka/protocols/gka"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func testConfig() config.Config {
	c := config.Default()
	c.Timeout = 5 * time.Second
	c.LogLevel = "debug"
	return c
}

func toySecrets() map[party.ID]pairwise.Secrets {
	return test.RingSecrets([]*big.Int{big.NewInt(5), big.NewInt(9), big.NewInt(12)}, 1)
}

func checkAccepted(t *testing.T, report *Report) {
	require.True(t, report.Accepted(), "reasons: %v", report.Reasons())
	for _, id := range report.Ring {
		o := report.Outcomes[id]
		require.NotNil(t, o)
		require.NoError(t, o.Err)
		assert.Equal(t, id, o.ID)
		assert.True(t, o.Accepted)
		assert.Equal(t, report.Outcomes[0].Result.SessionID, o.Result.SessionID)
	}
}

func checkRejected(t *testing.T, report *Report, ids party.IDSlice, expected gka.Reason) {
	assert.False(t, report.Accepted())
	_, err := report.SessionKey()
	assert.Error(t, err)
	for _, id := range ids {
		o := report.Outcomes[id]
		require.NotNil(t, o, "party %s", id)
		assert.False(t, o.Accepted)
		assert.Nil(t, o.Result)
		assert.Error(t, o.Err)
		assert.Equal(t, expected, o.Reason, "party %s", id)
	}
}

func TestRun_ToyVector(t *testing.T) {
	log := zerolog.New(zerolog.NewTestWriter(t))
	report, err := Run(context.Background(), testConfig(), party.Ring(3), toySecrets(), WithLogger(log))
	require.NoError(t, err)
	checkAccepted(t, report)

	key, err := report.SessionKey()
	require.NoError(t, err)
	assert.Equal(t, hash.HexDigest([]byte("59120120")), key)
	assert.Equal(t, hash.HexDigest([]byte("59120121")), report.Outcomes[2].Result.SessionID)
}

func TestRunSequential_ToyVector(t *testing.T) {
	log := zerolog.New(zerolog.NewTestWriter(t))
	report, err := RunSequential(testConfig(), party.Ring(3), toySecrets(), WithLogger(log))
	require.NoError(t, err)
	checkAccepted(t, report)

	key, err := report.SessionKey()
	require.NoError(t, err)
	assert.Equal(t, hash.HexDigest([]byte("59120120")), key)
}

func TestRun_PairwiseSetup(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Workers = 2
	ring := party.Ring(7)

	secrets, err := pairwise.Ring(ctx, ring, pairwise.HKDF{Password: []byte("correct horse"), Salt: []byte("ring")})
	require.NoError(t, err)

	report, err := Run(ctx, cfg, ring, secrets, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	checkAccepted(t, report)

	// a new run over the same secrets uses a new run id and new randomness, but the same key
	again, err := Run(ctx, cfg, ring, secrets, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	checkAccepted(t, again)
	assert.NotEqual(t, report.RunID, again.RunID)
	k1, _ := report.SessionKey()
	k2, _ := again.SessionKey()
	assert.Equal(t, k1, k2)
}

func TestRun_MissingParticipant(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 200 * time.Millisecond

	report, err := Run(context.Background(), cfg, party.Ring(4), toyRing4(), WithLogger(zerolog.Nop()), WithParticipants(0, 1, 3))
	require.NoError(t, err)
	checkRejected(t, report, party.IDSlice{0, 1, 3}, gka.Reason{
		Kind:         gka.ReasonMissingParticipant,
		Participants: party.IDSlice{2},
	})
	assert.NotContains(t, report.Outcomes, party.ID(2))
	for _, o := range report.Outcomes {
		assert.ErrorIs(t, o.Err, gka.ErrMissingParticipant)
	}
}

func TestParticipate_RingMismatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// party 0 believes the ring has 4 parties, 1 and 2 that it has 3
	rings := map[party.ID]party.IDSlice{0: party.Ring(4), 1: party.Ring(3), 2: party.Ring(3)}
	secrets4, secrets3 := toyRing4(), toySecrets()
	hub := broadcast.NewHub(party.Ring(4), 8)
	hub.Leave(3)

	handlers := make(map[party.ID]*protocol.MultiHandler, len(rings))
	for id, ring := range rings {
		secrets := secrets3[id]
		if len(ring) == 4 {
			secrets = secrets4[id]
		}
		h, err := protocol.NewMultiHandler(gka.Start(id, ring, secrets, gka.Options{}), []byte("same run"))
		require.NoError(t, err)
		handlers[id] = h
	}

	var errGroup errgroup.Group
	for id, h := range handlers {
		id, h := id, h
		errGroup.Go(func() error { return Participate(ctx, h, id, hub) })
	}
	require.NoError(t, errGroup.Wait())
	require.NoError(t, ctx.Err(), "the mismatch is detected without waiting for the deadline")

	for id, h := range handlers {
		o := outcome(id, h)
		assert.False(t, o.Accepted)
		assert.ErrorIs(t, o.Err, gka.ErrMalformedInput, "party %s", id)
		assert.Equal(t, gka.ReasonMalformedInput, o.Reason.Kind, "party %s", id)
		require.Len(t, o.Reason.Participants, 1, "party %s", id)
		assert.True(t, rings[id].Remove(id).Contains(o.Reason.Participants...), "party %s blames %v", id, o.Reason.Participants)
	}
	assert.Equal(t, party.IDSlice{0}, outcome(1, handlers[1]).Reason.Participants)
	assert.Equal(t, party.IDSlice{0}, outcome(2, handlers[2]).Reason.Participants)
}

func TestAbort_NothingRevealed(t *testing.T) {
	ring := party.Ring(3)
	secrets := toySecrets()

	start := func(id party.ID) *protocol.MultiHandler {
		h, err := protocol.NewMultiHandler(gka.Start(id, ring, secrets[id], gka.Options{}), []byte("run"))
		require.NoError(t, err)
		return h
	}
	checkNoReveal := func(t *testing.T, sent []*protocol.Message) {
		require.Len(t, sent, 1, "only the commitment was broadcast")
		for _, msg := range sent {
			assert.Equal(t, round.Number(2), msg.RoundNumber)
			assert.NotEqual(t, round.Number(3), msg.RoundNumber, "no reveal after an abort")
		}
	}

	t.Run("abort", func(t *testing.T) {
		h0, h1 := start(0), start(1)
		// party 0 holds the commitment of party 1, party 2 never commits
		for _, msg := range drain(h1) {
			h0.Accept(msg)
		}
		sent := drain(h0)
		h0.Abort(missing(context.DeadlineExceeded))
		sent = append(sent, drain(h0)...)
		checkNoReveal(t, sent)
		_, ok := <-h0.Listen()
		assert.False(t, ok)

		o := outcome(0, h0)
		assert.Equal(t, gka.Reason{Kind: gka.ReasonMissingParticipant, Participants: party.IDSlice{2}}, o.Reason)
	})

	t.Run("timeout", func(t *testing.T) {
		h0, h1 := start(0), start(1)
		for _, msg := range drain(h1) {
			h0.Accept(msg)
		}
		// nobody reads for parties 1 and 2, so the hub keeps all that party 0 broadcast
		hub := broadcast.NewHub(ring, 8)
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		require.NoError(t, Participate(ctx, h0, 0, hub))

		var sent []*protocol.Message
		for len(hub.Next(1)) > 0 {
			sent = append(sent, <-hub.Next(1))
		}
		checkNoReveal(t, sent)
		assert.Len(t, hub.Next(2), 1)
		assert.Equal(t, gka.ReasonMissingParticipant, outcome(0, h0).Reason.Kind)
	})
}

func TestRunSequential_MissingParticipant(t *testing.T) {
	report, err := RunSequential(testConfig(), party.Ring(4), toyRing4(), WithLogger(zerolog.Nop()), WithParticipants(1, 2, 3))
	require.NoError(t, err)
	checkRejected(t, report, party.IDSlice{1, 2, 3}, gka.Reason{
		Kind:         gka.ReasonMissingParticipant,
		Participants: party.IDSlice{0},
	})
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Run(ctx, testConfig(), party.Ring(3), toySecrets(), WithLogger(zerolog.Nop()), WithParticipants(0))
	require.NoError(t, err)
	checkRejected(t, report, party.IDSlice{0}, gka.Reason{
		Kind:         gka.ReasonMissingParticipant,
		Participants: party.IDSlice{1, 2},
	})
}

func TestRun_MissingSecrets(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 200 * time.Millisecond
	secrets := toySecrets()
	delete(secrets, 1)

	report, err := Run(context.Background(), cfg, party.Ring(3), secrets, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	checkRejected(t, report, party.IDSlice{1}, gka.Reason{
		Kind:         gka.ReasonMalformedInput,
		Participants: party.IDSlice{1},
	})
	checkRejected(t, report, party.IDSlice{0, 2}, gka.Reason{
		Kind:         gka.ReasonMissingParticipant,
		Participants: party.IDSlice{1},
	})
}

func TestRunSequential_RingClosure(t *testing.T) {
	secrets := toySecrets()
	s := secrets[2]
	s.Left = []byte{11}
	secrets[2] = s

	report, err := RunSequential(testConfig(), party.Ring(3), secrets, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	checkRejected(t, report, party.Ring(3), gka.Reason{Kind: gka.ReasonRingClosure})
	assert.Equal(t, []gka.Reason{{Kind: gka.ReasonRingClosure}}, report.Reasons())
	for _, o := range report.Outcomes {
		assert.ErrorIs(t, o.Err, gka.ErrIntegrity)
	}
}

func TestRun_InvalidInput(t *testing.T) {
	ctx := context.Background()

	_, err := Run(ctx, testConfig(), party.IDSlice{0, 1}, toySecrets())
	assert.ErrorIs(t, err, gka.ErrMalformedInput)

	_, err = RunSequential(testConfig(), party.Ring(3), toySecrets(), WithParticipants(0, 5))
	assert.ErrorIs(t, err, gka.ErrMalformedInput)

	cfg := testConfig()
	cfg.CommitmentBits = 32
	_, err = Run(ctx, cfg, party.Ring(3), toySecrets())
	assert.Error(t, err)
}

func toyRing4() map[party.ID]pairwise.Secrets {
	return test.RingSecrets([]*big.Int{big.NewInt(5), big.NewInt(9), big.NewInt(12), big.NewInt(3)}, 1)
}
