package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/iudanet/gophsync/internal/conflict"
	"github.com/iudanet/gophsync/internal/models"
)

// readRecords читает файл снимка: одна запись или массив записей
func readRecords(path string) ([]*models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var records []*models.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return records, nil
	}

	var record models.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return []*models.Record{&record}, nil
}

func readFields(path string) (models.Fields, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var fields models.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return fields, nil
}

// readPair читает локальный и удаленный снимки
func readPair(localPath, remotePath string) ([]*models.Record, []*models.Record, error) {
	locals, err := readRecords(localPath)
	if err != nil {
		return nil, nil, err
	}
	remotes, err := readRecords(remotePath)
	if err != nil {
		return nil, nil, err
	}
	return locals, remotes, nil
}

// detectAll группирует записи по типу локальной версии и ищет конфликты.
// Типы обходятся в отсортированном порядке, чтобы вывод был стабильным.
func detectAll(detector *conflict.Detector, locals, remotes []*models.Record, logger *slog.Logger) []*models.DetectedConflict {
	type group struct {
		locals, remotes []*models.Record
	}
	groups := make(map[string]*group)
	typeOf := make(map[string]string, len(locals))

	for _, r := range locals {
		if r == nil {
			continue
		}
		typeOf[r.ID] = r.Type
		g, ok := groups[r.Type]
		if !ok {
			g = &group{}
			groups[r.Type] = g
		}
		g.locals = append(g.locals, r)
	}
	for _, r := range remotes {
		if r == nil {
			continue
		}
		t, ok := typeOf[r.ID]
		if !ok {
			logger.Debug("Remote record has no local counterpart", "entity_id", r.ID)
			continue
		}
		groups[t].remotes = append(groups[t].remotes, r)
	}

	types := make([]string, 0, len(groups))
	for t := range groups {
		types = append(types, t)
	}
	sort.Strings(types)

	var out []*models.DetectedConflict
	for _, t := range types {
		g := groups[t]
		out = append(out, detector.DetectBatch(g.locals, g.remotes, t)...)
	}
	return out
}
