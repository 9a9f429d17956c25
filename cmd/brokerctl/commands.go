package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/efreitasn/minibroker/internal/app"
	"github.com/efreitasn/minibroker/internal/config"
	"github.com/efreitasn/minibroker/internal/domain"
	"github.com/efreitasn/minibroker/internal/service"
	"github.com/efreitasn/minibroker/internal/store"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

var errNeedsPostgres = errors.New("command requires STORE=postgres")

type migrateCmd struct{ *env }

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create the Postgres schema" }
func (*migrateCmd) Usage() string {
	return `brokerctl migrate

  Applies the schema to DATABASE_URL. Safe to run repeatedly.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (c *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.cfg.Store != config.StorePostgres {
		fmt.Fprintln(os.Stderr, errNeedsPostgres)
		return subcommands.ExitUsageError
	}
	pg, err := app.OpenPostgres(ctx, c.cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	pg.Close()
	fmt.Fprintln(c.out, "schema up to date")
	return subcommands.ExitSuccess
}

type seedCmd struct {
	*env
	file string
}

func (*seedCmd) Name() string     { return "seed" }
func (*seedCmd) Synopsis() string { return "load instruments, quotes, accounts and orders into Postgres" }
func (*seedCmd) Usage() string {
	return `brokerctl seed [-file <seed.json>]

  Migrates, then upserts the seed. Orders are only loaded into accounts
  that have none, so seeding twice does not duplicate the ledger.
`
}

func (c *seedCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "Seed document. Defaults to the built-in sample data.")
}

func (c *seedCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.cfg.Store != config.StorePostgres {
		fmt.Fprintln(os.Stderr, errNeedsPostgres)
		return subcommands.ExitUsageError
	}
	seed, err := store.LoadSeed(c.file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	pg, err := app.OpenPostgres(ctx, c.cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer pg.Close()
	if err := pg.ApplySeed(ctx, seed); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.out, "seeded %d instruments, %d quotes, %d accounts\n",
		len(seed.Instruments), len(seed.Quotes), len(seed.Accounts))
	return subcommands.ExitSuccess
}

type balanceCmd struct{ *env }

func (*balanceCmd) Name() string           { return "balance" }
func (*balanceCmd) Synopsis() string       { return "print an account's available cash" }
func (*balanceCmd) Usage() string          { return "brokerctl balance <account_number>\n" }
func (*balanceCmd) SetFlags(*flag.FlagSet) {}

func (c *balanceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return c.withApp(ctx, func(a *app.App) error {
		b, err := a.Accounts.GetCashBalance(ctx, f.Arg(0))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s\t%s\n", b.AccountNumber, domain.FormatMoney(b.CashAvailable, b.Currency))
		return nil
	})
}

type portfolioCmd struct{ *env }

func (*portfolioCmd) Name() string           { return "portfolio" }
func (*portfolioCmd) Synopsis() string       { return "print an account's valued holdings" }
func (*portfolioCmd) Usage() string          { return "brokerctl portfolio <account_number>\n" }
func (*portfolioCmd) SetFlags(*flag.FlagSet) {}

func (c *portfolioCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	return c.withApp(ctx, func(a *app.App) error {
		p, err := a.Accounts.GetPortfolio(ctx, f.Arg(0))
		if err != nil {
			return err
		}
		cur := c.cfg.SettlementTicker
		tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TICKER\tNAME\tSHARES\tINVESTED\tPERFORMANCE")
		for _, asset := range p.Assets {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s%%\n",
				asset.Instrument.Ticker, asset.Instrument.Name, asset.Shares,
				domain.FormatMoney(asset.TotalValue, cur), asset.Performance.StringFixed(2))
		}
		fmt.Fprintf(tw, "\t\t\t\t\n")
		fmt.Fprintf(tw, "CASH\t\t\t%s\t\n", domain.FormatMoney(p.CashAvailable, cur))
		fmt.Fprintf(tw, "TOTAL\t\t\t%s\t\n", domain.FormatMoney(p.AccountTotal, cur))
		return tw.Flush()
	})
}

type submitCmd struct {
	*env
	account string
	typ     string
	side    string
	ticker  string
	size    int64
	amount  string
	price   string
}

func (*submitCmd) Name() string     { return "submit" }
func (*submitCmd) Synopsis() string { return "admit one order and print the outcome" }
func (*submitCmd) Usage() string {
	return `brokerctl submit -account <n> -side <BUY|SELL|CASH_IN|CASH_OUT> [-type MARKET|LIMIT]
                 [-ticker <t>] [-size <n> | -amount <a>] [-price <p>]

  With STORE=memory the order only lives for the duration of the command.
`
}

func (c *submitCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "account", "", "Account number.")
	f.StringVar(&c.typ, "type", string(domain.OrderTypeMarket), "Order type.")
	f.StringVar(&c.side, "side", "", "Order side.")
	f.StringVar(&c.ticker, "ticker", "", "Instrument ticker, for BUY and SELL.")
	f.Int64Var(&c.size, "size", 0, "Quantity of shares, or of currency for cash orders.")
	f.StringVar(&c.amount, "amount", "", "Amount of money to invest or divest, instead of -size.")
	f.StringVar(&c.price, "price", "", "Limit price.")
}

func (c *submitCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	req, err := c.request()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	return c.withApp(ctx, func(a *app.App) error {
		o, err := a.Orders.SubmitOrder(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s\t%s\t%s %s\t%d @ %s\n",
			o.ID, o.Status, o.Type, o.Side, o.Size, o.Price.StringFixed(2))
		return nil
	})
}

// request maps flags to a submission. Unset flags stay nil so the service
// sees exactly which fields were given.
func (c *submitCmd) request() (service.SubmitOrderRequest, error) {
	req := service.SubmitOrderRequest{
		AccountNumber: c.account,
		Type:          domain.OrderType(strings.ToUpper(c.typ)),
		Side:          domain.OrderSide(strings.ToUpper(c.side)),
	}
	if c.ticker != "" {
		t := strings.ToUpper(c.ticker)
		req.Ticker = &t
	}
	if c.size != 0 {
		s := c.size
		req.Size = &s
	}
	var err error
	if req.Amount, err = optionalDecimal("amount", c.amount); err != nil {
		return req, err
	}
	if req.Price, err = optionalDecimal("price", c.price); err != nil {
		return req, err
	}
	return req, nil
}

func optionalDecimal(name, v string) (*decimal.Decimal, error) {
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("invalid -%s %q: %w", name, v, err)
	}
	return &d, nil
}

type instrumentsCmd struct{ *env }

func (*instrumentsCmd) Name() string           { return "instruments" }
func (*instrumentsCmd) Synopsis() string       { return "search instruments and show their last close" }
func (*instrumentsCmd) Usage() string          { return "brokerctl instruments [query]\n" }
func (*instrumentsCmd) SetFlags(*flag.FlagSet) {}

func (c *instrumentsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withApp(ctx, func(a *app.App) error {
		found, err := a.Instruments.Search(ctx, strings.Join(f.Args(), " "))
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TICKER\tTYPE\tNAME\tLAST CLOSE")
		for _, inst := range found {
			last := "-"
			if q, err := a.Instruments.GetQuote(ctx, inst.Ticker); err == nil {
				last = domain.FormatMoney(q.LatestQuote.Close, c.cfg.SettlementTicker)
			} else if !errors.Is(err, domain.ErrQuoteNotFound) {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", inst.Ticker, inst.Type, inst.Name, last)
		}
		return tw.Flush()
	})
}
