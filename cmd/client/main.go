// Command client signs in to a daybook API and exercises the data access
// layer from the terminal:
//
//	client -email jane@example.com -password ... me
//	client ... feed [pages]
//	client ... like <post id>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/jrsteele09/go-daybook/cache"
	"github.com/jrsteele09/go-daybook/gateway"
	"github.com/jrsteele09/go-daybook/internal/config"
	"github.com/jrsteele09/go-daybook/journal"
	"github.com/jrsteele09/go-daybook/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	email := flag.String("email", config.GetEnv("DAYBOOK_EMAIL", ""), "account email")
	password := flag.String("password", config.GetEnv("DAYBOOK_PASSWORD", ""), "account password")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := run(context.Background(), config.New(), *email, *password, flag.Args()); err != nil {
		log.Err(err).Msg("client failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, c config.Config, email, password string, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: client [flags] me | feed [pages] | like <post id>")
	}

	gw, err := gateway.New(c.GetAPIBaseURL(),
		gateway.WithTimeout(c.GetRequestTimeout()),
		gateway.WithSessionExpiredHandler(func() {
			log.Warn().Msg("session expired, sign in again")
		}),
	)
	if err != nil {
		return err
	}
	if _, err := gw.Login(ctx, email, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer gw.Logout(ctx)

	client := journal.NewClient(gw, c.GetPageSize())
	switch args[0] {
	case "me":
		resp, err := gw.Get(ctx, "/api/auth/me")
		if err != nil {
			return err
		}
		var me users.User
		if err := gateway.DecodeJSON(resp, &me); err != nil {
			return err
		}
		fmt.Printf("%s <%s> joined %s\n", me.Username, me.Email, me.DateJoined.Format("2006-01-02"))
	case "feed":
		pages := 1
		if len(args) > 1 {
			if pages, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("pages: %w", err)
			}
		}
		return printFeed(ctx, client.Feed(), pages)
	case "like":
		if len(args) < 2 {
			return errors.New("like needs a post id")
		}
		post, err := client.Post(ctx, args[1])
		if err != nil {
			return err
		}
		if err := client.ToggleLike(ctx, args[1], post); err != nil {
			return err
		}
		p, _ := post.Get()
		fmt.Printf("%s liked=%t likes=%d\n", p.ID, p.Liked, p.LikeCount)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func printFeed(ctx context.Context, feed *cache.List[journal.Post], pages int) error {
	sub := feed.Subscribe(func(s cache.ListState[journal.Post]) {
		log.Debug().Int("items", len(s.Items)).Bool("loading", s.Loading || s.LoadingMore).Bool("has_more", s.HasMore).Msg("feed")
	})
	defer sub.Close()

	for i := 0; i < pages; i++ {
		if err := sub.LoadMore(ctx); err != nil {
			return err
		}
		if !feed.State().HasMore {
			break
		}
	}
	for _, p := range feed.State().Items {
		fmt.Printf("%s  %-5t %4d  %s\n", p.ID, p.Liked, p.LikeCount, p.Body)
	}
	return nil
}
