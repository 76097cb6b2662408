package cvstore

import (
	"context"

	"github.com/gordian-engine/gadapter/cv/cvconsensus"
)

// ValueStore is the set of operations every consensus value backend implements.
//
// Implementations must be safe for concurrent use.
// Each save must be atomic: a concurrent load observes either the whole record or nothing.
// If ctx is canceled during a save, the save must either fully complete
// or have no effect.
type ValueStore interface {
	// MaxDecidedValueHeight returns the greatest height with a decided value.
	// If the store holds no decided values, ok is false and err is nil.
	MaxDecidedValueHeight(ctx context.Context) (h cvconsensus.Height, ok bool, err error)

	// LoadDecidedValue returns the decided value at height h.
	// If h has not been decided, ok is false and err is nil.
	LoadDecidedValue(ctx context.Context, h cvconsensus.Height) (dv cvconsensus.DecidedValue, ok bool, err error)

	// SaveDecidedValue persists the certificate and value
	// as the decided value for the certificate's height.
	//
	// Saving an identical pair again is a no-op.
	// Saving a different pair at an already decided height
	// returns a [DecidedValueConflictError] and leaves the existing value unmodified.
	SaveDecidedValue(ctx context.Context, cert cvconsensus.CommitCertificate, v cvconsensus.Value) error

	// LoadUndecidedProposals returns every proposal saved at the given height and round,
	// in the order they were first saved.
	// The result is empty, with a nil error, if there are no such proposals.
	LoadUndecidedProposals(ctx context.Context, h cvconsensus.Height, r cvconsensus.Round) ([]cvconsensus.ProposedValue, error)

	// SaveUndecidedProposal persists pv under its (height, round, value ID) key.
	// Saving the same key again overwrites the earlier entry
	// without changing its position in the insertion order.
	SaveUndecidedProposal(ctx context.Context, pv cvconsensus.ProposedValue) error

	// LoadUndecidedProposal returns the proposal matching the full key.
	// If there is no such proposal, ok is false and err is nil.
	LoadUndecidedProposal(
		ctx context.Context,
		h cvconsensus.Height, r cvconsensus.Round, id cvconsensus.ValueID,
	) (pv cvconsensus.ProposedValue, ok bool, err error)

	// VerifyTables confirms the backing storage has every schema element
	// the store needs, returning a [MissingTableError] for the first missing element.
	// It is meant as a startup check.
	VerifyTables(ctx context.Context) error
}
