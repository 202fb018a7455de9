package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alissayuxuan/OMNI-SYS/internal/domain/comm"
)

func NewListenCommand() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run a receiving node for an agent",
		Long: `Log in as an agent through the HTTP bridge and run its node, printing
every delivery as one JSON line until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListen(cmd, o)
		},
	}
	o.bind(cmd)
	return cmd
}

func runListen(cmd *cobra.Command, o *options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printer := newDeliveryPrinter(cmd.OutOrStdout())
	s, err := o.open(ctx, printer)
	if err != nil {
		return err
	}
	defer s.close()

	identity, err := s.resolve(ctx, o.username)
	if err != nil {
		return err
	}

	node, err := s.manager.CreateNode(ctx, identity, nil)
	if err != nil {
		return fmt.Errorf("failed to start node %s: %w", identity, err)
	}
	s.logger.Infow("listening", "identity", identity, "topic", comm.InboxTopic(identity))

	select {
	case <-ctx.Done():
	case <-node.Done():
	}
	return nil
}

// deliveryPrinter writes each delivery as an inbox entry JSON line.
type deliveryPrinter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newDeliveryPrinter(w io.Writer) *deliveryPrinter {
	return &deliveryPrinter{enc: json.NewEncoder(w)}
}

var _ comm.Observer = (*deliveryPrinter)(nil)

func (p *deliveryPrinter) Observe(_ context.Context, d comm.Delivery) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.enc.Encode(comm.NewInboxEntry(d))
}
