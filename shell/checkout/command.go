package checkout

import (
	"github.com/google/uuid"

	"github.com/AntonStoeckl/marketplace-checkout-go/marketplace"
)

const (
	commandType = "Checkout"
)

// Command represents the intent of the authenticated actor to check out a cart snapshot.
type Command struct {
	ActorID uuid.UUID
	Lines   []marketplace.CheckoutLine
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(actorID uuid.UUID, lines []marketplace.CheckoutLine) Command {
	return Command{
		ActorID: actorID,
		Lines:   lines,
	}
}
