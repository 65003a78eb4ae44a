package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/fridgekeeper/internal/client/models"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/scheduler"
	"github.com/dmitrijs2005/fridgekeeper/internal/client/services"
	"github.com/dmitrijs2005/fridgekeeper/internal/common"
)

// Add prompts for a product and stores it as a new item.
func (a *App) Add(ctx context.Context) error {
	var p models.Product
	var err error
	if p.Barcode, err = GetSimpleText(a.reader, "Barcode (empty if none)", a.out); err != nil {
		return err
	}
	if p.Name, err = GetSimpleText(a.reader, "Name", a.out); err != nil {
		return err
	}
	if p.Brand, err = GetSimpleText(a.reader, "Brand (optional)", a.out); err != nil {
		return err
	}
	expiry, err := GetSimpleText(a.reader, "Expiry date yyyy-MM-dd (optional)", a.out)
	if err != nil {
		return err
	}
	if p.Barcode == "" && p.Name == "" {
		return fmt.Errorf("%w: barcode or name is required", common.ErrorValidation)
	}

	mode := models.AddModeManual
	if p.Barcode != "" {
		mode = models.AddModeScan
	}
	item, err := a.inventory.AddItem(ctx, p, expiry, mode)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s\n", item.ClientID)
	return nil
}

// AddNote prompts for a note body and attaches it to itemID.
func (a *App) AddNote(ctx context.Context, itemID string) error {
	body, err := GetMultiline(a.reader, "Note text", a.out)
	if err != nil {
		return err
	}
	pinned, err := GetYesNo(a.reader, "Pin the note?", a.out)
	if err != nil {
		return err
	}
	note, err := a.inventory.AddNote(ctx, itemID, body, pinned)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added note %s\n", note.ClientID)
	return nil
}

func (a *App) List(ctx context.Context) error {
	items, err := a.inventory.List(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "The fridge is empty.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEXPIRES\tSYNC")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ClientID, displayName(it.Item), it.ExpiryDate, syncColumn(it.SyncInfo))
	}
	return tw.Flush()
}

func (a *App) Notes(ctx context.Context, itemID string) error {
	notes, err := a.inventory.Notes(ctx, itemID)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		fmt.Fprintln(a.out, "No notes.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPIN\tCREATED\tSYNC\tTEXT")
	for _, n := range notes {
		pin := ""
		if n.Pinned {
			pin = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", n.ClientID, pin,
			n.CreatedAt.Local().Format("2006-01-02 15:04"), syncColumn(n.SyncInfo), n.Body)
	}
	return tw.Flush()
}

func (a *App) Delete(ctx context.Context, id string) error {
	err := a.inventory.Delete(ctx, id)
	if errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("no record with id %s", id)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", id)
	return nil
}

// Sync requests a background pass. The pass itself runs once the server
// is reachable.
func (a *App) Sync(ctx context.Context) error {
	cur, err := a.sessions.Current(ctx)
	if err != nil {
		return err
	}
	if !cur.CanSync(time.Now()) {
		fmt.Fprintln(a.out, "Not signed in, nothing will be synced. Use 'login' first.")
		return nil
	}
	a.trigger.RequestSyncPass()
	if a.watcher.Online() {
		fmt.Fprintln(a.out, "Sync pass requested.")
	} else {
		fmt.Fprintln(a.out, "Offline: the sync pass will run once the server is reachable.")
	}
	return nil
}

// SyncNow runs one pass and prints its report. The pass goes through the
// scheduler, so it never overlaps a background one.
func (a *App) SyncNow(ctx context.Context) error {
	if !a.watcher.Check(ctx) {
		return fmt.Errorf("server %s is unreachable", a.cfg.ServerURL)
	}

	done := make(chan services.PassReport, 1)
	accepted := a.queue.EnqueueUnique(scheduler.SyncPassName, scheduler.Replace, func(ctx context.Context) error {
		rep := a.engine.RunPass(ctx)
		done <- rep
		return rep.PullErr
	})
	if !accepted {
		return errors.New("sync pass was not scheduled")
	}

	select {
	case rep := <-done:
		printPassReport(a, rep)
		return rep.PullErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func printPassReport(a *App, rep services.PassReport) {
	if rep.Push.Skipped && rep.Pull.Skipped {
		fmt.Fprintln(a.out, "Not signed in, nothing was synced.")
		return
	}
	fmt.Fprintf(a.out, "Pushed %d of %d change(s), %d failed.\n",
		rep.Push.Succeeded, rep.Push.Attempted, rep.Push.Failed)
	fmt.Fprintf(a.out, "Pulled %d item(s) and %d note(s).\n",
		rep.Pull.Items.Fetched, rep.Pull.Notes.Fetched)
	if rep.Push.Unauthorized {
		fmt.Fprintln(a.out, "The server rejected the token. Use 'login' again.")
	}
	if rep.PullErr != nil {
		fmt.Fprintln(a.out, "Pull failed:", rep.PullErr)
	}
}

// Status prints the session and the number of records per sync status.
func (a *App) Status(ctx context.Context) error {
	cur, err := a.sessions.Current(ctx)
	if err != nil {
		return err
	}
	c, err := a.inventory.Status(ctx)
	if err != nil {
		return err
	}

	mode := string(cur.Mode)
	if mode == "" {
		mode = "signed out"
	}
	if cur.NeedsReauth {
		mode += " (login required)"
	}
	fmt.Fprintf(a.out, "Session:        %s\n", mode)
	fmt.Fprintf(a.out, "Synced:         %d\n", c.Synced)
	fmt.Fprintf(a.out, "Pending create: %d\n", c.PendingCreate)
	fmt.Fprintf(a.out, "Pending delete: %d\n", c.PendingDelete)
	fmt.Fprintf(a.out, "Failed:         %d\n", c.Failed)
	return nil
}

// Login stores an access token and requests a pass with it.
func (a *App) Login(ctx context.Context) error {
	token, err := a.readSecret()
	if err != nil {
		return err
	}
	if err := a.sessions.Login(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed in.")
	a.trigger.RequestSyncPass()
	return nil
}

func (a *App) UseLocal(ctx context.Context) error {
	if err := a.sessions.UseLocal(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Local mode: changes stay on this device.")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.sessions.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func displayName(it models.Item) string {
	switch {
	case it.Name != "" && it.Brand != "":
		return it.Name + " (" + it.Brand + ")"
	case it.Name != "":
		return it.Name
	case it.Barcode != "":
		return it.Barcode
	}
	return "(unnamed)"
}

func syncColumn(s models.SyncInfo) string {
	if s.LastSyncError != "" {
		return s.Status + ": " + s.LastSyncError
	}
	return s.Status
}

var _ execIface = (*App)(nil)
