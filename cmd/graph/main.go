package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/inkwell-notes/inkwell/pkg/note"
	"github.com/inkwell-notes/inkwell/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})))

	outVar := flag.String("out", "", "the svg path to write, defaults to a temp file")
	flag.Parse()
	if flag.NArg() != 1 {
		return fmt.Errorf("expected one positional argument: the sqlite database to read")
	}

	db, err := sql.Open("sqlite3", flag.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT id, title, category, owner_name, updated_at FROM notes ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []note.Note
	for rows.Next() {
		var n note.Note
		if err := rows.Scan(&n.ID, &n.Title, &n.Category, &n.OwnerName, &n.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read notes: %w", err)
	}
	slog.Info("loaded notes", "count", len(notes))

	if *outVar != "" {
		if err := viz.RenderNotesToSvg(notes, *outVar); err != nil {
			return err
		}
		slog.Info("rendered", "path", "file://"+*outVar)
		return nil
	}
	svgPath, err := viz.RenderToTemp(notes)
	if err != nil {
		return err
	}
	slog.Info("rendered", "path", "file://"+svgPath)
	return nil
}
