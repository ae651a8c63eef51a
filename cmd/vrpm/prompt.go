package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
	"github.com/vrpm-dev/vrpm/pkg/vrpm"
)

// stdinInteractive reports whether stdin is a terminal rather than a
// pipe or a file.
func stdinInteractive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// confirmPrompt asks a yes/no question on the terminal. Enter and any
// answer other than yes count as no, and so does a non-interactive
// stdin, so scripted runs never block.
func confirmPrompt(prompt string) (bool, error) {
	if !stdinInteractive() {
		return false, nil
	}

	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, nil
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// pickBackup lets the user choose one of the listed backups and asks
// for a final confirmation before it is restored. Both declining and
// aborting the picker cancel the restore.
func pickBackup(records []vrpm.BackupRecord) (int, bool, error) {
	if !stdinInteractive() {
		return 0, true, nil
	}

	now := time.Now()
	opts := make([]huh.Option[int], 0, len(records))
	for i, rec := range records {
		label := fmt.Sprintf("%s  (%s, %s)", rec.Name,
			humanize.IBytes(uint64(rec.Size)),
			humanize.RelTime(rec.ModTime, now, "ago", "from now"))
		opts = append(opts, huh.NewOption(label, i+1))
	}

	var index int
	err := huh.NewSelect[int]().
		Title("Select a backup to restore").
		Options(opts...).
		Value(&index).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return 0, true, nil
		}
		return 0, false, err
	}

	ok, err := confirmPrompt("This will overwrite the current RAM profile. Continue?")
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, true, nil
	}
	return index, false, nil
}
