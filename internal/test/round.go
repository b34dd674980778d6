package test

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/ringpake/gka/internal/round"
	"github.com/ringpake/gka/pkg/party"
	"golang.org/x/sync/errgroup"
)

// Rule describes various hooks that can be applied to a protocol execution.
type Rule interface {
	// ModifyBefore modifies r before r.Finalize() is called.
	ModifyBefore(r round.Session)
	// ModifyAfter modifies rNext, which is the round returned by r.Finalize().
	ModifyAfter(rNext round.Session)
	// ModifyContent modifies content for the message broadcast by from, before it is delivered to the
	// parties in rNext.
	ModifyContent(rNext round.Session, from party.ID, content round.Content)
}

// Rounds finalizes every round concurrently, and delivers all broadcast messages to the other parties,
// after a cbor round trip.
// It returns true once all parties have reached an output or abort round.
func Rounds(rounds []round.Session, rule Rule) (error, bool) {
	var (
		err      error
		errGroup errgroup.Group
		N        = len(rounds)
		out      = make(chan *round.Message, N*(N+1))
	)

	if _, err = checkAllRoundsSame(rounds); err != nil {
		return err, false
	}

	for id := range rounds {
		idx := id
		r := rounds[idx]
		errGroup.Go(func() error {
			var rNew round.Session
			var err error
			if rule != nil {
				rule.ModifyBefore(r)
				outFake := make(chan *round.Message, N+1)
				rNew, err = r.Finalize(outFake)
				close(outFake)
				if err != nil {
					return err
				}
				rule.ModifyAfter(rNew)
				for msg := range outFake {
					rule.ModifyContent(rNew, msg.From, msg.Content)
					out <- msg
				}
			} else {
				rNew, err = r.Finalize(out)
				if err != nil {
					return err
				}
			}

			if rNew != nil {
				rounds[idx] = rNew
			}
			return nil
		})
	}
	if err = errGroup.Wait(); err != nil {
		return err, false
	}
	close(out)

	if done(rounds) {
		return nil, true
	}
	if _, err = checkAllRoundsSame(rounds); err != nil {
		return err, false
	}

	for msg := range out {
		msgBytes, err := cbor.Marshal(msg.Content)
		if err != nil {
			return err, false
		}
		for _, r := range rounds {
			r := r
			from := msg.From
			if from == r.SelfID() || msg.Content.RoundNumber() != r.Number() {
				continue
			}
			errGroup.Go(func() error {
				content := r.MessageContent()
				if err := cbor.Unmarshal(msgBytes, content); err != nil {
					return err
				}
				m := round.Message{From: from, Content: content}
				if err := r.VerifyMessage(m); err != nil {
					return err
				}
				return r.StoreMessage(m)
			})
		}
		if err = errGroup.Wait(); err != nil {
			return err, false
		}
	}

	return nil, false
}

// done returns true if every round is an output or an abort round.
func done(rounds []round.Session) bool {
	for _, r := range rounds {
		switch r.(type) {
		case *round.Output, *round.Abort:
		default:
			return false
		}
	}
	return true
}

func checkAllRoundsSame(rounds []round.Session) (reflect.Type, error) {
	var t reflect.Type
	for _, r := range rounds {
		t2 := reflect.TypeOf(r)
		if t == nil {
			t = t2
		} else if t != t2 {
			return t, fmt.Errorf("two different rounds: %s %s", t, t2)
		}
	}
	return t, nil
}
