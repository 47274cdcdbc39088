package ingest

import (
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jlaffaye/ftp"

	"github.com/flightyield/seatcast/internal/metrics"
	"github.com/flightyield/seatcast/internal/models"
)

// SnapshotArchive persists fetched snapshot drops. StoreSnapshotFile
// returns false when an identical payload was archived before.
type SnapshotArchive interface {
	StoreSnapshotFile(filename, dataset string, data []byte) (bool, error)
}

// DropFetcher pulls snapshot CSV drops from the revenue-management FTP
// endpoint. Drops are immutable files; dedup happens on payload hash in
// the archive.
type DropFetcher struct {
	addr     string
	user     string
	password string
	dir      string
	timeout  time.Duration
}

func NewDropFetcher(addr, user, password, dir string) *DropFetcher {
	return &DropFetcher{
		addr:     addr,
		user:     user,
		password: password,
		dir:      dir,
		timeout:  30 * time.Second,
	}
}

// FetchDrops downloads every CSV drop in the remote directory and archives
// the ones not seen before. Transient failures are retried with backoff;
// login and archive failures abort immediately.
func (d *DropFetcher) FetchDrops(ctx context.Context, archive SnapshotArchive) (int, error) {
	var stored int
	operation := func() error {
		n, err := d.fetchOnce(ctx, archive)
		if err != nil {
			return err
		}
		stored = n
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		metrics.SnapshotDropsTotal.WithLabelValues("error").Inc()
		metrics.FTPFetchesTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	metrics.FTPFetchesTotal.WithLabelValues("success").Inc()
	return stored, nil
}

func (d *DropFetcher) fetchOnce(ctx context.Context, archive SnapshotArchive) (int, error) {
	conn, err := ftp.Dial(d.addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(d.timeout))
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", d.addr, err)
	}
	defer conn.Quit()

	if err := conn.Login(d.user, d.password); err != nil {
		return 0, backoff.Permanent(fmt.Errorf("login: %w", err))
	}

	entries, err := conn.List(d.dir)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", d.dir, err)
	}

	stored := 0
	for _, entry := range entries {
		if entry.Type != ftp.EntryTypeFile || !strings.HasSuffix(strings.ToLower(entry.Name), ".csv") {
			continue
		}
		resp, err := conn.Retr(path.Join(d.dir, entry.Name))
		if err != nil {
			return stored, fmt.Errorf("retrieve %s: %w", entry.Name, err)
		}
		data, err := io.ReadAll(resp)
		resp.Close()
		if err != nil {
			return stored, fmt.Errorf("read %s: %w", entry.Name, err)
		}

		ok, err := archive.StoreSnapshotFile(entry.Name, DatasetFromFilename(entry.Name), data)
		if err != nil {
			return stored, backoff.Permanent(fmt.Errorf("archive %s: %w", entry.Name, err))
		}
		if ok {
			stored++
			metrics.SnapshotDropsTotal.WithLabelValues("stored").Inc()
			log.Printf("ingest: archived snapshot drop %s (%d bytes)", entry.Name, len(data))
		} else {
			metrics.SnapshotDropsTotal.WithLabelValues("duplicate").Inc()
		}
	}
	return stored, nil
}

// DatasetFromFilename infers the dataset from a drop name. Drops named
// like forecast_2025-08.csv carry the to-forecast flights; everything
// else is historical.
func DatasetFromFilename(name string) string {
	if strings.Contains(strings.ToLower(name), "forecast") {
		return models.DatasetForecast
	}
	return models.DatasetHistorical
}
