// walletbrokerctl is an operator CLI for issuing one-shot wallet commands
// against a running broker's configured wallet endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/table"
	"github.com/urfave/cli"

	walletbroker "github.com/decred/walletbroker"
	"github.com/decred/walletbroker/broker"
	"github.com/decred/walletbroker/config"
)

func main() {
	app := cli.NewApp()
	app.Name = "walletbrokerctl"
	app.Usage = "operator commands for the wallet broker"
	app.Commands = []cli.Command{
		simpleCommand("info", "Query wallet info.", (*broker.Broker).Info),
		simpleCommand("start", "Start the wallet.", (*broker.Broker).Start),
		simpleCommand("stop", "Stop the wallet.", (*broker.Broker).Stop),
		simpleCommand("restart", "Restart the wallet.", (*broker.Broker).Restart),
		simpleCommand("reindex", "Reindex the wallet.", (*broker.Broker).Reindex),
		simpleCommand("resync", "Resync the wallet.", (*broker.Broker).Resync),
		simpleCommand("rescan", "Rescan the wallet.", (*broker.Broker).Rescan),
		simpleCommand("bestblockhash", "Query the best block hash.", (*broker.Broker).BestBlockHash),
		{
			Name:      "newaddress",
			Usage:     "Request a new address for an account.",
			ArgsUsage: "account-id",
			Action:    actionDecorator(cmdNewAddress),
		},
		{
			Name:      "addresses",
			Usage:     "List addresses owned by an account.",
			ArgsUsage: "account-id",
			Action:    actionDecorator(cmdAddresses),
		},
		{
			Name:      "addressbalance",
			Usage:     "Query the balance of an address.",
			ArgsUsage: "address",
			Action:    actionDecorator(cmdAddressBalance),
		},
		{
			Name:      "idbalance",
			Usage:     "Query the balance of an account.",
			ArgsUsage: "account-id",
			Action:    actionDecorator(cmdIDBalance),
		},
		{
			Name:      "sendfunds",
			Usage:     "Send funds from an account to an address.",
			ArgsUsage: "from-account to-address amount",
			Action:    actionDecorator(cmdSendFunds),
		},
		{
			Name:      "replay",
			Usage:     "Request a replay of a transaction.",
			ArgsUsage: "txid",
			Action:    actionDecorator(cmdReplay),
		},
		{
			Name:      "crawl",
			Usage:     "Request a rescan starting at a block.",
			ArgsUsage: "blockhash-or-height",
			Action:    actionDecorator(cmdCrawl),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// actionDecorator wraps a command function so any returned error is
// reported uniformly by the urfave/cli runtime with the command name
// prefixed.
func actionDecorator(fn func(*cli.Context) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		if err := fn(c); err != nil {
			return fmt.Errorf("%s: %w", c.Command.Name, err)
		}
		return nil
	}
}

// connectFacade loads configuration from the environment, connects to the
// configured wallet endpoint, and waits briefly for the connection to come
// up before returning. Callers are responsible for stopping the returned
// broker once done.
func connectFacade(c *cli.Context) (*walletbroker.Broker, error) {
	cfg, err := config.FromEnvironment(nil)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	brok, err := walletbroker.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("building broker: %w", err)
	}
	if err := brok.Start(); err != nil {
		return nil, fmt.Errorf("starting broker: %w", err)
	}

	// Give the outbound connection manager a moment to establish before
	// the first command is issued.
	time.Sleep(500 * time.Millisecond)

	return brok, nil
}

func printReply(r *broker.Reply) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"isError", "message"})
	t.AppendRow(table.Row{r.IsError, r.String()})
	fmt.Println(t.Render())
}

func cmdNewAddress(c *cli.Context) error {
	if len(c.Args()) != 1 {
		return cli.ShowCommandHelp(c, "newaddress")
	}
	brok, err := connectFacade(c)
	if err != nil {
		return err
	}
	defer brok.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply, err := brok.Facade.NewAddress(ctx, c.Args().Get(0))
	if err != nil {
		return err
	}
	printReply(reply)
	return nil
}

func cmdAddresses(c *cli.Context) error {
	if len(c.Args()) != 1 {
		return cli.ShowCommandHelp(c, "addresses")
	}
	brok, err := connectFacade(c)
	if err != nil {
		return err
	}
	defer brok.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply, err := brok.Facade.Addresses(ctx, c.Args().Get(0))
	if err != nil {
		return err
	}
	printReply(reply)
	return nil
}

func cmdAddressBalance(c *cli.Context) error {
	if len(c.Args()) != 1 {
		return cli.ShowCommandHelp(c, "addressbalance")
	}
	brok, err := connectFacade(c)
	if err != nil {
		return err
	}
	defer brok.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply, err := brok.Facade.AddressBalance(ctx, c.Args().Get(0))
	if err != nil {
		return err
	}
	printReply(reply)
	return nil
}

func cmdIDBalance(c *cli.Context) error {
	if len(c.Args()) != 1 {
		return cli.ShowCommandHelp(c, "idbalance")
	}
	brok, err := connectFacade(c)
	if err != nil {
		return err
	}
	defer brok.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply, err := brok.Facade.IDBalance(ctx, c.Args().Get(0))
	if err != nil {
		return err
	}
	printReply(reply)
	return nil
}

func cmdSendFunds(c *cli.Context) error {
	if len(c.Args()) != 3 {
		return cli.ShowCommandHelp(c, "sendfunds")
	}
	brok, err := connectFacade(c)
	if err != nil {
		return err
	}
	defer brok.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply, err := brok.Facade.SendFunds(ctx, &broker.TransactionRequest{
		FromUserID: c.Args().Get(0),
		ToAddress:  c.Args().Get(1),
		Amount:     c.Args().Get(2),
	})
	if err != nil {
		return err
	}
	printReply(reply)
	return nil
}

func cmdReplay(c *cli.Context) error {
	if len(c.Args()) != 1 {
		return cli.ShowCommandHelp(c, "replay")
	}
	brok, err := connectFacade(c)
	if err != nil {
		return err
	}
	defer brok.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply, err := brok.Facade.Replay(ctx, c.Args().Get(0))
	if err != nil {
		return err
	}
	printReply(reply)
	return nil
}

func cmdCrawl(c *cli.Context) error {
	if len(c.Args()) != 1 {
		return cli.ShowCommandHelp(c, "crawl")
	}
	brok, err := connectFacade(c)
	if err != nil {
		return err
	}
	defer brok.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reply, err := brok.Facade.Crawl(ctx, c.Args().Get(0))
	if err != nil {
		return err
	}
	printReply(reply)
	return nil
}

// simpleCommand builds a cli.Command for a no-argument facade method such
// as START or INFO.
func simpleCommand(name, usage string, method func(*broker.Broker, context.Context) (*broker.Reply, error)) cli.Command {
	return cli.Command{
		Name:  name,
		Usage: usage,
		Action: actionDecorator(func(c *cli.Context) error {
			brok, err := connectFacade(c)
			if err != nil {
				return err
			}
			defer brok.Stop()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			reply, err := method(brok.Facade, ctx)
			if err != nil {
				return err
			}
			printReply(reply)
			return nil
		}),
	}
}
