package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"text/tabwriter"

	"fsanano/storefront/internal/client"
	"fsanano/storefront/internal/model"
	"fsanano/storefront/internal/purchase"
	"fsanano/storefront/internal/viewmodel"
)

type app struct {
	api    *client.Client
	log    *slog.Logger
	stdout io.Writer
}

type command struct {
	help string
	run  func(ctx context.Context, a *app, args []string) error
}

type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

var commands = map[string]command{
	"products":       {"list products", listProducts},
	"users":          {"list users (admin)", listUsers},
	"orders":         {"list all orders (admin)", listOrders},
	"history":        {"list your orders", orderHistory},
	"balance":        {"show your balance", showBalance},
	"deposit":        {"deposit <amount>", addDeposit},
	"withdraw":       {"withdraw <amount>", withdraw},
	"buy":            {"buy [-atomic] [-compensate] <product-id> <quantity>", buy},
	"set-price":      {"set-price <product-id> <price> (admin)", setPrice},
	"set-inventory":  {"set-inventory <product-id> <inventory> (admin)", setInventory},
	"add-product":    {"add-product -name n -price p -inventory i [-category c] [-description d] (admin)", addProduct},
	"delete-product": {"delete-product <product-id> (admin)", deleteProduct},
	"delete-user":    {"delete-user <user-id> (admin)", deleteUser},
	"promote":        {"promote [-role admin|user] <user-id> (admin)", promote},
	"logout":         {"log out", logout},
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func argIDs(args []string, names ...string) ([]model.ID, error) {
	if len(args) != len(names) {
		return nil, &usageError{fmt.Sprintf("expected %d argument(s): %v", len(names), names)}
	}
	ids := make([]model.ID, len(args))
	for i, arg := range args {
		id, err := model.ParseID(arg)
		if err != nil {
			return nil, &usageError{fmt.Sprintf("%s: %v", names[i], err)}
		}
		ids[i] = id
	}
	return ids, nil
}

func parseMoneyArg(name, raw string) (model.Money, error) {
	m, err := model.ParseMoney(raw)
	if err != nil {
		return model.Money{}, &usageError{fmt.Sprintf("%s: %v", name, err)}
	}
	return m, nil
}

func parseIntArg(name, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &usageError{fmt.Sprintf("%s must be a whole number", name)}
	}
	return n, nil
}

func table(w io.Writer, header string, rows func(tw io.Writer)) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	tw.Flush()
}

func printProducts(w io.Writer, products []model.Product) {
	table(w, "ID\tNAME\tPRICE\tINVENTORY\tCATEGORY", func(tw io.Writer) {
		for _, p := range products {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Name, p.Price, p.Inventory, p.Category)
		}
	})
}

func printOrders(w io.Writer, orders []model.Order) {
	table(w, "ID\tUSER\tPRODUCT\tQUANTITY\tDATE", func(tw io.Writer) {
		for _, o := range orders {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", o.ID, o.UserID, o.ProductName, o.Quantity, o.OrderDate.Format("2006-01-02 15:04"))
		}
	})
}

func listProducts(ctx context.Context, a *app, _ []string) error {
	products, err := a.api.ListProducts(ctx)
	if err != nil {
		return err
	}
	printProducts(a.stdout, products)
	return nil
}

func listUsers(ctx context.Context, a *app, _ []string) error {
	users, err := a.api.ListUsers(ctx)
	if err != nil {
		return err
	}
	table(a.stdout, "ID\tUSERNAME\tROLE\tDEPOSIT", func(tw io.Writer) {
		for _, u := range users {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Role, u.Deposit)
		}
	})
	return nil
}

func listOrders(ctx context.Context, a *app, _ []string) error {
	orders, err := a.api.ListOrders(ctx)
	if err != nil {
		return err
	}
	printOrders(a.stdout, orders)
	return nil
}

func orderHistory(ctx context.Context, a *app, _ []string) error {
	h := viewmodel.NewOrderHistory(a.api, func(orders []model.Order) {
		printOrders(a.stdout, orders)
	})
	defer h.Close()
	return h.Load(ctx)
}

func showBalance(ctx context.Context, a *app, _ []string) error {
	s := viewmodel.NewStorefront(a.api, nil)
	defer s.Close()
	if err := s.Load(ctx); err != nil {
		return err
	}
	st := s.State()
	fmt.Fprintf(a.stdout, "%s: %s\n", st.Username, st.Balance)
	return nil
}

func addDeposit(ctx context.Context, a *app, args []string) error {
	return adjustBalance(ctx, a, args, a.api.AddDeposit)
}

func withdraw(ctx context.Context, a *app, args []string) error {
	return adjustBalance(ctx, a, args, a.api.MinusDeposit)
}

func adjustBalance(ctx context.Context, a *app, args []string, apply func(context.Context, model.Money) (model.Money, error)) error {
	if len(args) != 1 {
		return &usageError{"expected an amount"}
	}
	amount, err := parseMoneyArg("amount", args[0])
	if err != nil {
		return err
	}
	balance, err := apply(ctx, amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "balance: %s\n", balance)
	return nil
}

func buy(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("buy", flag.ContinueOnError)
	atomic := fs.Bool("atomic", false, "place the order in a single server transaction")
	compensate := fs.Bool("compensate", false, "return the stock if charging fails")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return &usageError{"expected <product-id> <quantity>"}
	}
	ids, err := argIDs(fs.Args()[:1], "product-id")
	if err != nil {
		return err
	}
	quantity, err := parseIntArg("quantity", fs.Arg(1))
	if err != nil {
		return err
	}

	opts := []purchase.Option{purchase.WithLogger(a.log)}
	if *compensate {
		opts = append(opts, purchase.WithCompensation())
	}
	s := viewmodel.NewStorefront(a.api, nil, opts...)
	defer s.Close()
	if err := s.Load(ctx); err != nil {
		return err
	}

	if *atomic {
		orderID, err := s.BuyAtomic(ctx, ids[0], quantity)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "order %s placed, balance: %s\n", orderID, s.State().Balance)
		return nil
	}

	receipt, err := s.Buy(ctx, ids[0], quantity)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "purchase %s: %d x product %s for %s, %d left, balance: %s\n",
		receipt.PurchaseID, receipt.Quantity, receipt.ProductID, receipt.TotalCost, receipt.Inventory, s.State().Balance)
	if receipt.BalanceRefreshErr != nil {
		fmt.Fprintf(a.stdout, "warning: balance shown may be stale: %v\n", receipt.BalanceRefreshErr)
	}
	return nil
}

func loadDashboard(ctx context.Context, a *app) (*viewmodel.Dashboard, error) {
	d := viewmodel.NewDashboard(a.api, nil)
	if err := d.Load(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func setPrice(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return &usageError{"expected <product-id> <price>"}
	}
	ids, err := argIDs(args[:1], "product-id")
	if err != nil {
		return err
	}
	price, err := parseMoneyArg("price", args[1])
	if err != nil {
		return err
	}
	if err := a.api.UpdatePrice(ctx, ids[0], price); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "product %s now costs %s\n", ids[0], price)
	return nil
}

func setInventory(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return &usageError{"expected <product-id> <inventory>"}
	}
	ids, err := argIDs(args[:1], "product-id")
	if err != nil {
		return err
	}
	inventory, err := parseIntArg("inventory", args[1])
	if err != nil {
		return err
	}

	d, err := loadDashboard(ctx, a)
	if err != nil {
		return err
	}
	defer d.Close()

	acked, err := d.SetInventory(ctx, ids[0], inventory)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "product %s inventory: %d\n", ids[0], acked)
	return nil
}

func addProduct(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("add-product", flag.ContinueOnError)
	name := fs.String("name", "", "product name")
	price := fs.String("price", "", "unit price")
	inventory := fs.Int("inventory", 0, "initial inventory")
	category := fs.String("category", "", "category")
	description := fs.String("description", "", "description")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p, err := parseMoneyArg("price", *price)
	if err != nil {
		return err
	}
	id, err := a.api.AddProduct(ctx, model.Product{
		Name:        *name,
		Price:       p,
		Inventory:   *inventory,
		Category:    *category,
		Description: *description,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "product %s added\n", id)
	return nil
}

func deleteProduct(ctx context.Context, a *app, args []string) error {
	ids, err := argIDs(args, "product-id")
	if err != nil {
		return err
	}
	if err := a.api.DeleteProduct(ctx, ids[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "product %s deleted\n", ids[0])
	return nil
}

func deleteUser(ctx context.Context, a *app, args []string) error {
	ids, err := argIDs(args, "user-id")
	if err != nil {
		return err
	}
	if err := a.api.DeleteUser(ctx, ids[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "user %s deleted\n", ids[0])
	return nil
}

func promote(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("promote", flag.ContinueOnError)
	role := fs.String("role", string(model.RoleAdmin), "new role")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ids, err := argIDs(fs.Args(), "user-id")
	if err != nil {
		return err
	}
	if err := a.api.UpdateRole(ctx, ids[0], model.Role(*role)); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "user %s is now %s\n", ids[0], *role)
	return nil
}

func logout(ctx context.Context, a *app, _ []string) error {
	msg, err := a.api.Logout(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, msg)
	return nil
}
