package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	appcomm "github.com/alissayuxuan/OMNI-SYS/internal/application/comm"
)

type sendOptions struct {
	options
	to       string
	protocol string
	msgType  string
	payload  string
	file     string
	wait     bool
}

func NewSendCommand() *cobra.Command {
	o := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send one message from an agent to another",
		Long: `Log in as an agent through the HTTP bridge, resolve the receiver by
username, and publish one message from a transient node.

The payload is sent as JSON when it parses as JSON and as a string otherwise.
With --file the file's bytes are encoded with the protocol's codec.`,
		Example: `  omnisys send -u medical-device-1 -p secret --to doctor-3 --protocol HL7 \
    --type observation --payload '{"patient_id":"P12345","observation":"BP: 120/80"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}

	o.bind(cmd)
	flags := cmd.Flags()
	flags.StringVar(&o.to, "to", "", "Receiver username (required)")
	flags.StringVar(&o.protocol, "protocol", "HL7", "Payload protocol tag")
	flags.StringVar(&o.msgType, "type", "observation", "Message type")
	flags.StringVar(&o.payload, "payload", "", "Message payload")
	flags.StringVar(&o.file, "file", "", "Send the contents of this file, codec-encoded")
	flags.BoolVar(&o.wait, "wait", false, "Keep the node running until interrupted so buffered messages are retried")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func (o *sendOptions) run(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := o.open(ctx, nil)
	if err != nil {
		return err
	}
	defer s.close()

	sender, err := s.resolve(ctx, o.username)
	if err != nil {
		return err
	}
	receiver, err := s.resolve(ctx, o.to)
	if err != nil {
		return err
	}
	s.logger.Infow("resolved agents", "sender", sender, "receiver", receiver)

	node, err := s.manager.CreateNode(ctx, sender, nil)
	if err != nil {
		return fmt.Errorf("failed to start node %s: %w", sender, err)
	}

	status, err := o.send(ctx, node, receiver)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s: %s\n", sender, receiver, status)

	if o.wait {
		<-ctx.Done()
	}
	return nil
}

func (o *sendOptions) send(ctx context.Context, node *appcomm.Node, receiver string) (appcomm.SendStatus, error) {
	if o.file != "" {
		raw, err := os.ReadFile(o.file)
		if err != nil {
			return appcomm.StatusDropped, fmt.Errorf("failed to read %s: %w", o.file, err)
		}
		return node.SendEncoded(ctx, receiver, o.protocol, o.msgType, raw)
	}
	return node.SendMessage(ctx, receiver, o.protocol, o.msgType, parsePayload(o.payload))
}

// parsePayload keeps JSON payloads structured and sends anything else as text.
func parsePayload(s string) any {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	return s
}
