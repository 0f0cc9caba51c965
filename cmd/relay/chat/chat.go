// Package chatcmder provides the chat command for interactive chat with a
// Dify app through a running relay server.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/papercomputeco/relay/api"
	"github.com/papercomputeco/relay/pkg/cliui"
	"github.com/papercomputeco/relay/pkg/client"
	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/consumer"
	"github.com/papercomputeco/relay/pkg/dify"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

const stopTimeout = 5 * time.Second

type chatCommander struct {
	target       string
	token        string
	idleTimeout  string
	conversation string
	markdown     bool
	debug        bool

	configDir string
	viper     *viper.Viper
	logger    *slog.Logger

	// notify derives the context of one turn; it is cancelled on Ctrl-C.
	notify func(context.Context) (context.Context, context.CancelFunc)
}

var chatFlags = []string{
	config.FlagTarget,
	config.FlagToken,
	config.FlagIdleTimeout,
}

const chatLongDesc string = `Start an interactive chat session through a running relay server.

Each line you enter is sent as a query; the answer is printed as it streams
in. Follow-up lines continue the same conversation. Ctrl-C stops the answer
being generated without leaving the session; /exit or Ctrl-D quits.

The bearer token comes from --token, RELAY_CLIENT_TOKEN or client.token
(see "relay token --save").

Examples:
  relay chat
  relay chat --target http://relay.internal:8080 --conversation 45701982`

const chatShortDesc string = "Interactive chat through a relay server"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{
		notify: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, chatFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.target = cmder.viper.GetString("client.target")
			cmder.token = cmder.viper.GetString("client.token")
			cmder.idleTimeout = cmder.viper.GetString("dify.idle_timeout")

			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	config.AddStringFlag(cmd, config.Flags, config.FlagToken, &cmder.token)
	config.AddStringFlag(cmd, config.Flags, config.FlagIdleTimeout, &cmder.idleTimeout)
	cmd.Flags().StringVarP(&cmder.conversation, "conversation", "c", "", "Continue an existing conversation")
	cmd.Flags().BoolVar(&cmder.markdown, "markdown", false, "Render each finished answer as markdown (terminal only)")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(errOut),
		logger.WithComponent("chat"),
	)

	if c.token == "" {
		return errors.New("client.token is not set: run \"relay token --user <id> --save\" or pass --token")
	}

	idle, err := parseIdleTimeout(c.idleTimeout)
	if err != nil {
		return err
	}

	cl := client.New(client.Config{
		Target:      c.target,
		Token:       c.token,
		IdleTimeout: idle,
		Logger:      c.logger,
	})

	render := c.markdown && isTerminal(out)

	fmt.Fprintln(out)
	if c.conversation != "" {
		fmt.Fprintf(out, "  %s Resuming conversation %s\n", cliui.SuccessMark, cliui.HashStyle.Render(utils.Truncate(c.conversation, 16)))
	} else {
		fmt.Fprintf(out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}
	fmt.Fprintf(out, "  %s %s\n\n", cliui.KeyStyle.Render("Relay:"), cliui.NameStyle.Render(c.target))
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. Ctrl+C stops an answer, /exit or Ctrl+D quits."))

	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		c.turn(ctx, cl, input, out, errOut, render)
		fmt.Fprintln(out)
		fmt.Fprintln(out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(out)
	return nil
}

// turn streams the answer to one query. Failures are reported and the
// session continues.
func (c *chatCommander) turn(parent context.Context, cl *client.Client, query string, out, errOut io.Writer, render bool) {
	ctx, cancel := c.notify(parent)
	defer cancel()

	c.logger.Debug("sending chat request",
		"target", c.target,
		"conversation_id", c.conversation,
	)

	stream, err := cl.ChatMessagesStream(ctx, api.ChatMessagesRequest{
		Query:          query,
		ConversationID: c.conversation,
	})
	if err != nil {
		if consumer.IsAbort(err) {
			fmt.Fprintf(out, "  %s %s", cliui.StoppedMark, cliui.DimStyle.Render("stopped"))
			return
		}
		fmt.Fprintf(errOut, "  %s %v\n", cliui.FailMark, err)
		return
	}

	fmt.Fprint(out, assistantPrompt)

	cons := consumer.New(
		consumer.WithConversationID(c.conversation),
		consumer.WithLogger(c.logger),
		consumer.WithOnEvent(func(e consumer.Entry) {
			if render {
				return
			}
			switch ev := e.Event.(type) {
			case *dify.Message:
				fmt.Fprint(out, ev.Answer)
			case *dify.AgentMessage:
				fmt.Fprint(out, ev.Answer)
			case *dify.MessageReplace:
				fmt.Fprintf(out, "\n%s%s", assistantPrompt, ev.Answer)
			}
		}),
	)

	err = cons.Consume(stream)
	if id := cons.ConversationID(); id != "" {
		c.conversation = id
	}

	switch {
	case err == nil:
		if render {
			rendered, rerr := cliui.RenderMarkdown(cons.Answer())
			if rerr != nil {
				c.logger.Debug("markdown rendering failed", "error", rerr)
			}
			fmt.Fprint(out, strings.TrimRight(rendered, "\n"))
		}

	case consumer.IsAbort(err):
		fmt.Fprintf(out, " %s %s", cliui.StoppedMark, cliui.DimStyle.Render("stopped"))
		c.stop(cl, cons.TaskID())

	default:
		fmt.Fprintln(out)
		fmt.Fprintf(errOut, "  %s %v\n", cliui.FailMark, err)
	}
}

// stop asks the relay to stop generating taskID. The turn context is
// already cancelled, so the request gets its own.
func (c *chatCommander) stop(cl *client.Client, taskID string) {
	if taskID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if _, err := cl.StopChatMessage(ctx, taskID); err != nil {
		c.logger.Warn("could not stop generation", "task_id", taskID, "error", err)
	}
}

func parseIdleTimeout(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid idle timeout %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid idle timeout %q: must not be negative", s)
	}
	return d, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
