// The client binary joins one live session and mirrors it in the terminal:
// snapshots render as they arrive, and stdin lines become intents.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/topluluk-game/sync-client/internal/config"
	"github.com/topluluk-game/sync-client/internal/dispatch"
	"github.com/topluluk-game/sync-client/internal/rest"
	"github.com/topluluk-game/sync-client/internal/session"
	"github.com/topluluk-game/sync-client/internal/state"
	"github.com/topluluk-game/sync-client/internal/transport"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	code := flag.String("code", "", "join an existing session by code")
	name := flag.String("name", "player", "display name")
	flag.Parse()

	logger := newLogger(cfg.IsDevelopment())
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	restc := rest.NewClient(cfg.Server.BaseURL, "")
	var (
		info rest.SessionInfo
		err  error
	)
	if *code != "" {
		info, err = restc.JoinByCode(ctx, *code, *name)
	} else {
		info, err = restc.CreateSession(ctx, "topluluk", *name)
	}
	if err != nil {
		sugar.Fatalw("could not obtain session", "err", err)
	}
	sugar.Infow("session", "id", info.ID, "joinCode", info.JoinCode)

	tc := transport.NewClient(transport.Config{
		URL:         cfg.Server.WSURL + "?name=" + *name,
		SessionID:   info.ID,
		Token:       info.Token,
		BackoffBase: cfg.Transport.BackoffBase,
		BackoffCap:  cfg.Transport.BackoffCap,
	}, sugar)

	sess := session.New(ctx, info.ID, info.PlayerID, tc, sugar, session.WithTick(cfg.Transport.Tick))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return tc.Run(ctx) })

	g.Go(func() error {
		for ev := range tc.Events() {
			select {
			case sess.Inbox() <- session.Inbound{Event: ev}:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case u := <-tc.Status():
				fmt.Printf("-- %s", u.Status)
				if u.Err != nil {
					fmt.Printf(" (%v)", u.Err)
				}
				fmt.Println()
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		out := make(chan session.Snapshot, 8)
		sess.Inbox() <- session.Subscribe{ID: "terminal", Outbox: out}
		for {
			select {
			case snap, ok := <-out:
				if !ok {
					return nil
				}
				render(snap)
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			handleLine(sess, scanner.Text())
			if ctx.Err() != nil {
				return nil
			}
		}
		return scanner.Err()
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("session ended", "err", err)
	}
}

func render(snap session.Snapshot) {
	s := snap.State
	fmt.Printf("[v%d] %s round %d/%d", snap.Version, s.Phase, s.Round, s.TotalRounds)
	if snap.Remaining > 0 {
		fmt.Printf("  %ds left", int(snap.Remaining.Seconds()))
	}
	fmt.Printf("  T%d W%d S%d I%d\n",
		s.Resources.Treasury, s.Resources.Welfare, s.Resources.Stability, s.Resources.Infrastructure)
	if s.Event != nil {
		fmt.Printf("  %s: %s\n", s.Event.Title, s.Event.Description)
		for _, o := range s.Event.Options {
			marker := " "
			if o.ID == s.SelectedOptionID {
				marker = "*"
			}
			fmt.Printf("  %s %s  %s\n", marker, o.ID, o.Title)
		}
	}
	for _, pr := range s.Proposals {
		fmt.Printf("  proposal %s by %s -> %s (%d votes)\n", pr.ID, pr.AuthorName, pr.OptionID, len(pr.Votes))
	}
	if n := len(s.Chat); n > 0 {
		m := s.Chat[n-1]
		fmt.Printf("  chat %s: %s\n", m.AuthorName, m.Text)
	}
	if s.LastError != "" {
		fmt.Printf("  server: %s\n", s.LastError)
	}
	if s.Result != nil {
		fmt.Printf("  result: %s - %s\n", s.Result.Outcome, s.Result.Summary)
	}
}

func handleLine(sess *session.Session, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	fields := strings.Fields(line)
	var intent dispatch.Intent

	switch fields[0] {
	case "/ready":
		intent = dispatch.ReadyToggle{}
	case "/start":
		intent = dispatch.StartCountdown{}
	case "/cancel":
		intent = dispatch.CancelCountdown{}
	case "/bots":
		intent = dispatch.FillWithBots{}
	case "/pick":
		if len(fields) < 2 {
			fmt.Println("usage: /pick <optionId>")
			return
		}
		sess.Inbox() <- session.Select{OptionID: fields[1]}
		return
	case "/propose":
		if len(fields) < 2 {
			fmt.Println("usage: /propose <optionId> [rationale]")
			return
		}
		intent = dispatch.SubmitProposal{OptionID: fields[1], Rationale: strings.Join(fields[2:], " ")}
	case "/vote":
		if len(fields) < 3 {
			fmt.Println("usage: /vote <proposalId> affirm|reject|abstain")
			return
		}
		intent = dispatch.CastVote{ProposalID: fields[1], Choice: state.VoteChoice(fields[2])}
	default:
		intent = dispatch.SendChat{Text: line}
	}

	errc := make(chan error, 1)
	sess.Inbox() <- session.Intent{Intent: intent, Err: errc}
	if err := <-errc; err != nil {
		fmt.Printf("rejected: %v\n", err)
	}
}

func newLogger(dev bool) *zap.Logger {
	if dev {
		l, _ := zap.NewDevelopment()
		return l
	}
	l, _ := zap.NewProduction()
	return l
}
