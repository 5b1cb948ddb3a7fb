package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/parley"
	"github.com/outofforest/parley/wire"
)

const frameInterval = 50 * time.Millisecond

type options struct {
	Mode    string
	Address string
	Port    uint16
	WideIDs bool
}

func main() {
	var opts options
	flags := pflag.NewFlagSet("parley", pflag.ExitOnError)
	flags.StringVar(&opts.Mode, "mode", "", "role of this instance: client or server")
	flags.StringVar(&opts.Address, "address", "127.0.0.1", "address of the server to connect to")
	flags.Uint16Var(&opts.Port, "port", parley.DefaultConfig.BasePort, "port of the server to connect to")
	flags.BoolVar(&opts.WideIDs, "wide-ids", false, "use 64-bit message identities, peer must use them too")
	_ = flags.Parse(os.Args[1:])

	log := logger.New(logger.DefaultConfig)
	ctx, cancel := signal.NotifyContext(logger.WithLogger(context.Background(), log), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Chat failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	var role parley.Role
	switch opts.Mode {
	case "client":
		role = parley.RoleClient
	case "server":
		role = parley.RoleServer
	default:
		return errors.Errorf("invalid mode %q, client or server expected", opts.Mode)
	}

	config := parley.DefaultConfig
	if opts.WideIDs {
		config.IDFunc = wire.WideID
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("chat", parallel.Exit, func(ctx context.Context) error {
			p := parley.New(ctx, config)
			defer func() {
				if err := p.Close(); err != nil {
					logger.Get(ctx).Error("Closing processor failed", zap.Error(err))
				}
			}()

			if err := start(ctx, p, role, opts); err != nil {
				return err
			}
			return display(ctx, p, readLines())
		})

		return nil
	})
}

func start(ctx context.Context, p *parley.Processor, role parley.Role, opts options) error {
	if err := p.SetMode(role); err != nil {
		return err
	}

	switch role {
	case parley.RoleClient:
		if err := p.Connect(ctx, opts.Address, opts.Port); err != nil {
			return err
		}
		fmt.Printf("Connected to %s:%d\n", opts.Address, opts.Port)
	case parley.RoleServer:
		port, err := p.CreateServer()
		if err != nil {
			return err
		}
		fmt.Printf("Waiting for the other user on port %d\n", port)
	}
	return nil
}

// readLines streams lines typed by the user. Reading stdin can't be interrupted so the goroutine is left running.
func readLines() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if text := strings.TrimSpace(scanner.Text()); text != "" {
				lines <- text
			}
		}
	}()
	return lines
}

func display(ctx context.Context, p *parley.Processor, lines <-chan string) error {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	var (
		history      []parley.Message
		waitingShown bool
		lastErr      error
	)

	for {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case line, ok := <-lines:
			if !ok || line == "/quit" {
				return nil
			}
			m := p.NewMessage(line)
			p.QueueMessage(m)
			history = append(history, m)
			printMessage(m)
			continue
		case <-ticker.C:
		}

		if p.WaitingOnConnection() {
			// Waiting state is rendered for one frame before accepting.
			if !waitingShown {
				waitingShown = true
				continue
			}
			ok, err := p.WaitOnConnection()
			if err != nil {
				return err
			}
			if ok {
				fmt.Println("The other user joined")
			}
			continue
		}

		for _, m := range p.IncomingMessages() {
			printMessage(m)
			m.SetSeen()
			history = append(history, m)
			p.Seen(m.ID())
		}

		for _, id := range p.ReadMessages() {
			for i := range history {
				if history[i].Sender() == parley.SenderSelf && history[i].ID() == id && !history[i].Seen() {
					history[i].SetSeen()
					fmt.Printf("  (read) %s\n", history[i].Content())
				}
			}
		}

		if err := p.Err(); err != nil && err != lastErr {
			lastErr = err
			fmt.Printf("! %s\n", err)
		}

		if !p.Connected() {
			if err := p.Err(); !errors.Is(err, parley.ErrPeerDisconnected) {
				return err
			}
			return nil
		}
	}
}

func printMessage(m parley.Message) {
	who := "me"
	if m.Sender() == parley.SenderOther {
		who = "them"
	}
	fmt.Printf("[%s] %s: %s\n", m.SentTime().Format(time.Kitchen), who, m.Content())
}
