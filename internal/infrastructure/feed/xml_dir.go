package feed

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/palletledger/backend/internal/domain/matching"
	"github.com/palletledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// XMLDirectoryFeed serves NF-e files dropped into a directory tree.
// Files that fail to parse are logged and skipped so one bad file cannot stall a sweep.
type XMLDirectoryFeed struct {
	dir    string
	logger *zap.Logger
}

// NewXMLDirectoryFeed creates a feed over dir
func NewXMLDirectoryFeed(dir string, logger *zap.Logger) *XMLDirectoryFeed {
	return &XMLDirectoryFeed{dir: dir, logger: logger}
}

// Fetch returns the NF-e emitted on the days from through to, oldest first
func (f *XMLDirectoryFeed) Fetch(ctx context.Context, from, to time.Time) ([]matching.InboundCandidate, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.fetch", telemetry.WithAttribute("source", "xml"))
	defer span.End()

	var out []matching.InboundCandidate
	skipped := 0
	err := filepath.WalkDir(f.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".xml") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		cand, err := ParseNFe(data)
		if err != nil {
			skipped++
			level := zap.WarnLevel
			if errors.Is(err, ErrNotNFe) {
				level = zap.DebugLevel
			}
			f.logger.Log(level, "Skipping unreadable NF-e", zap.String("file", path), zap.Error(err))
			return nil
		}
		if inWindow(cand.EmissionDate, from, to) {
			out = append(out, cand)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].EmissionDate.Before(out[j].EmissionDate) })
	telemetry.SetAttributes(span, "candidates", len(out), "skipped", skipped)
	f.logger.Debug("Read NF-e directory",
		zap.String("dir", f.dir),
		zap.Int("candidates", len(out)),
		zap.Int("skipped", skipped),
	)
	return out, nil
}
