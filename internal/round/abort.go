package round

import "github.com/ringpake/gka/pkg/party"

// Abort is an empty round ending a session that cannot produce an output.
// It is returned by Finalize when a party cannot continue, for instance because the revealed
// values of the ring do not verify or a commitment never arrived.
type Abort struct {
	*Helper
	// Culprits are the parties whose messages caused the abort, such as the senders of a reveal
	// that does not open their commitment. It is empty when no party can be blamed.
	Culprits []party.ID
	// Err is the cause of the abort.
	Err error
}

func (Abort) VerifyMessage(Message) error                  { return nil }
func (Abort) StoreMessage(Message) error                   { return nil }
func (r *Abort) Finalize(chan<- *Message) (Session, error) { return r, nil }
func (Abort) MessageContent() Content                      { return nil }
func (Abort) Number() Number                               { return 0 }
