package game

import (
	"log/slog"

	"github.com/atotto/clipboard"
	"github.com/ncruces/zenity"
	"github.com/pkg/errors"
)

const appTitle = "Say Yes"

// sharer copies links and raises desktop notifications. Both talk to the
// OS and may block, so they run off the frame loop and report back through
// results.
type sharer struct {
	log     *slog.Logger
	results chan string

	copy     func(string) error
	fallback func(string) error
	notify   func(string) error
}

func newSharer(logger *slog.Logger) *sharer {
	return &sharer{
		log:      logger,
		results:  make(chan string, 8),
		copy:     clipboard.WriteAll,
		fallback: showLinkDialog,
		notify: func(msg string) error {
			return zenity.Notify(msg, zenity.Title(appTitle), zenity.InfoIcon)
		},
	}
}

// showLinkDialog puts the link in a preselected text field for manual copy.
func showLinkDialog(link string) error {
	_, err := zenity.Entry("Copy this link and send it:",
		zenity.Title(appTitle),
		zenity.EntryText(link))
	if errors.Is(err, zenity.ErrCanceled) {
		return nil
	}
	return err
}

// CopyLink tries the clipboard, then the dialog. The outcome arrives as a
// toast message on results.
func (s *sharer) CopyLink(link string) {
	if link == "" {
		return
	}
	go func() {
		err := s.copy(link)
		if err == nil {
			s.post("Link copied!")
			return
		}
		s.log.Info("clipboard unavailable, showing link dialog", "err", err)
		if err := s.fallback(link); err != nil {
			s.log.Warn("could not share link", "err", err)
			s.post("Couldn't copy the link")
		}
	}()
}

// Notify raises a desktop notification; failures only get logged.
func (s *sharer) Notify(msg string) {
	go func() {
		if err := s.notify(msg); err != nil {
			s.log.Debug("desktop notification failed", "err", err)
		}
	}()
}

func (s *sharer) post(msg string) {
	select {
	case s.results <- msg:
	default:
	}
}
