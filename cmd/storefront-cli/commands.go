package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"text/tabwriter"

	"storefront/internal/domain"
	"storefront/internal/reconcile"
	"storefront/internal/shopper"
)

const usage = `commands:
  register <email> <password> <name>   create an account and merge the local cart
  login <email> <password>             sign in and merge the local cart
  logout                               sign out and clear local state
  whoami                               show the signed-in account
  cart                                 show the cart and its totals
  add <productId> [quantity]           add a catalog product to the cart
  qty <productId> <quantity>           set a line quantity, 0 removes it
  rm <productId>                       remove a line
  clear                                empty the cart
  wishlist                             show the wishlist
  wish <productId>                     add a product to the wishlist
  unwish <productId>                   remove a product from the wishlist
  sync                                 push local state to the account now
`

var errUsage = errors.New("usage")

func run(ctx context.Context, sh *shopper.Shopper, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given", errUsage)
	}
	if err := sh.Open(ctx); err != nil {
		slog.Warn("continuing as guest", slog.String("error", err.Error()))
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		if err := need(rest, 3, "register <email> <password> <name>"); err != nil {
			return err
		}
		outcome, err := sh.Register(ctx, rest[0], rest[1], rest[2])
		if err != nil {
			return err
		}
		return signedIn(sh, outcome, out)

	case "login":
		if err := need(rest, 2, "login <email> <password>"); err != nil {
			return err
		}
		outcome, err := sh.Login(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		return signedIn(sh, outcome, out)

	case "logout":
		if err := sh.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Signed out")
		return nil

	case "whoami":
		profile, ok := sh.Profile()
		if !ok {
			fmt.Fprintln(out, "guest")
			return nil
		}
		fmt.Fprintf(out, "%s <%s>\n", profile.Name, profile.Email)
		return nil

	case "cart":
		printCart(out, sh.Cart(), sh.Totals())
		return nil

	case "add":
		if err := need(rest, 1, "add <productId> [quantity]"); err != nil {
			return err
		}
		quantity := 1
		if len(rest) > 1 {
			n, err := strconv.Atoi(rest[1])
			if err != nil || n < 1 {
				return fmt.Errorf("%w: quantity must be a positive number", errUsage)
			}
			quantity = n
		}
		line, err := sh.AddToCart(ctx, rest[0], quantity)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s x%d in cart\n", line.ProductID, line.Quantity)
		return push(ctx, sh)

	case "qty":
		if err := need(rest, 2, "qty <productId> <quantity>"); err != nil {
			return err
		}
		n, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("%w: quantity must be a number", errUsage)
		}
		if !sh.SetQuantity(rest[0], n) {
			return fmt.Errorf("%s is not in the cart", rest[0])
		}
		return push(ctx, sh)

	case "rm":
		if err := need(rest, 1, "rm <productId>"); err != nil {
			return err
		}
		if !sh.RemoveFromCart(rest[0]) {
			return fmt.Errorf("%s is not in the cart", rest[0])
		}
		return push(ctx, sh)

	case "clear":
		sh.ClearCart()
		fmt.Fprintln(out, "Cart cleared")
		return push(ctx, sh)

	case "wishlist":
		printWishlist(out, sh.Wishlist())
		return nil

	case "wish":
		if err := need(rest, 1, "wish <productId>"); err != nil {
			return err
		}
		added, err := sh.AddToWishlist(ctx, rest[0])
		if err != nil {
			return err
		}
		if !added {
			fmt.Fprintln(out, "Product already in wishlist")
			return nil
		}
		fmt.Fprintln(out, "Added to wishlist")
		return push(ctx, sh)

	case "unwish":
		if err := need(rest, 1, "unwish <productId>"); err != nil {
			return err
		}
		if !sh.RemoveFromWishlist(rest[0]) {
			fmt.Fprintln(out, "Product not in wishlist")
			return nil
		}
		fmt.Fprintln(out, "Removed from wishlist")
		return push(ctx, sh)

	case "sync":
		if err := sh.Sync(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Synced")
		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func need(args []string, n int, form string) error {
	if len(args) < n {
		return fmt.Errorf("%w: %s", errUsage, form)
	}
	return nil
}

// push sends the change to the account when signed in. The process exits
// right after a command, so the background scheduler cannot be relied on.
func push(ctx context.Context, sh *shopper.Shopper) error {
	if _, ok := sh.Profile(); !ok {
		return nil
	}
	return sh.Sync(ctx)
}

func signedIn(sh *shopper.Shopper, outcome reconcile.Outcome, out io.Writer) error {
	profile, _ := sh.Profile()
	fmt.Fprintf(out, "Signed in as %s\n", profile.Email)
	if outcome.CartMerged || outcome.WishMerged {
		fmt.Fprintln(out, "Merged local cart and wishlist into the account")
	}
	for _, id := range outcome.DroppedLines {
		fmt.Fprintf(out, "Dropped %s, no longer available\n", id)
	}
	for _, w := range outcome.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	return nil
}

func printCart(out io.Writer, cart domain.Cart, totals domain.Totals) {
	if cart.IsEmpty() {
		fmt.Fprintln(out, "Cart is empty")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tQTY\tPRICE\tTOTAL")
	for _, l := range cart.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\n", l.ProductID, l.ProductName, l.Quantity, l.UnitPrice, l.LineTotal)
	}
	tw.Flush()

	fmt.Fprintf(out, "\nItems     %d\n", totals.ItemCount)
	fmt.Fprintf(out, "Subtotal  %.2f %s\n", totals.Subtotal, cart.Currency)
	fmt.Fprintf(out, "Shipping  %.2f\n", totals.Shipping)
	fmt.Fprintf(out, "Tax       %.2f\n", totals.Tax)
	fmt.Fprintf(out, "Total     %.2f\n", totals.GrandTotal)
}

func printWishlist(out io.Writer, entries []domain.WishlistEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Wishlist is empty")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tPRICE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\n", e.ProductID, e.ProductName, e.Price)
	}
	tw.Flush()
}
