package convert

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/pcdset/internal/kvstore"
	"github.com/banshee-data/pcdset/internal/pointio"
)

// ValidationError reports the total number of structural mismatches
// found by a full validation scan.
type ValidationError struct {
	Mismatches int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d mismatches", e.Mismatches)
}

// ValidatePaired checks a paired-layout tree: every partial file must
// have a matching complete file, and both must carry the configured
// point counts. The scan always completes before deciding; any
// mismatch yields a *ValidationError.
func (p *PairedProfile) ValidatePaired(root string) error {
	mismatches := 0
	splits, err := listSplitDirs(root)
	if err != nil {
		return err
	}
	for _, split := range splits {
		partialDir := filepath.Join(root, split, "partial")
		completeDir := filepath.Join(root, split, "complete")
		if !dirExists(partialDir) || !dirExists(completeDir) {
			continue
		}
		err := filepath.WalkDir(partialDir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), "."+p.ext()) {
				return nil
			}
			rel, err := filepath.Rel(partialDir, path)
			if err != nil {
				return err
			}
			parts := strings.Split(rel, string(filepath.Separator))
			if len(parts) < 3 {
				return nil
			}
			category, model := parts[0], parts[1]

			completePath := filepath.Join(completeDir, category, model+"."+p.ext())
			if _, err := os.Stat(completePath); err != nil {
				log.Printf("missing complete for %s", path)
				mismatches++
				return nil
			}
			if !checkCount(path, p.PartialN) || !checkCount(completePath, p.CompleteN) {
				mismatches++
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("scan %s: %w", partialDir, err)
		}
	}
	if mismatches > 0 {
		return &ValidationError{Mismatches: mismatches}
	}
	log.Printf("validation passed for paired layout at %s", root)
	return nil
}

// ValidateFlat checks a flat-layout tree: every model directory must
// hold the fixed-stem output file with the configured point count,
// every split membership line must reference an existing model, and
// when a key-value store is present every expected key must exist with
// a matching stored point count.
func (p *FlatProfile) ValidateFlat(root string) error {
	mismatches := 0
	tokens := make(map[string]struct{})

	splits, err := listSplitDirs(root)
	if err != nil {
		return err
	}
	for _, split := range splits {
		splitDir := filepath.Join(root, split)
		catDirs, err := os.ReadDir(splitDir)
		if err != nil {
			return fmt.Errorf("scan %s: %w", splitDir, err)
		}
		for _, catDir := range catDirs {
			if !catDir.IsDir() {
				continue
			}
			modelDirs, err := os.ReadDir(filepath.Join(splitDir, catDir.Name()))
			if err != nil {
				return err
			}
			for _, modelDir := range modelDirs {
				if !modelDir.IsDir() {
					continue
				}
				token := catDir.Name() + "/" + modelDir.Name()
				tokens[token] = struct{}{}

				dataFile := filepath.Join(splitDir, catDir.Name(), modelDir.Name(), p.FileName())
				if _, err := os.Stat(dataFile); err != nil {
					log.Printf("missing point cloud %s", dataFile)
					mismatches++
					continue
				}
				if !checkCount(dataFile, p.PointsN) {
					mismatches++
				}
			}
		}
	}

	mismatches += checkSplitMembership(root, tokens)

	storePath := filepath.Join(root, KVStoreName)
	if _, err := os.Stat(storePath); err == nil {
		n, err := p.checkStore(storePath, tokens)
		if err != nil {
			return err
		}
		mismatches += n
	}

	if mismatches > 0 {
		return &ValidationError{Mismatches: mismatches}
	}
	log.Printf("validation passed for flat layout at %s", root)
	return nil
}

// checkSplitMembership cross-checks every line of every membership
// file against the model directories found on disk.
func checkSplitMembership(root string, tokens map[string]struct{}) int {
	mismatches := 0
	splitFiles, err := filepath.Glob(filepath.Join(root, "splits", "*.txt"))
	if err != nil {
		return 0
	}
	for _, splitFile := range splitFiles {
		fh, err := os.Open(splitFile)
		if err != nil {
			log.Printf("cannot open split file %s: %v", splitFile, err)
			mismatches++
			continue
		}
		scanner := bufio.NewScanner(fh)
		for scanner.Scan() {
			token := strings.TrimSpace(scanner.Text())
			if token == "" {
				continue
			}
			if _, ok := tokens[token]; !ok {
				log.Printf("split %s references missing model %s", filepath.Base(splitFile), token)
				mismatches++
			}
		}
		fh.Close()
	}
	return mismatches
}

// checkStore verifies every expected key exists in the packed store
// with a stored point count matching the profile.
func (p *FlatProfile) checkStore(storePath string, tokens map[string]struct{}) (int, error) {
	reader, err := kvstore.OpenRead(storePath)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	mismatches := 0
	for token := range tokens {
		key := "object/" + token
		cloud, err := reader.Get(key)
		if err != nil {
			log.Printf("store missing key %s", key)
			mismatches++
			continue
		}
		if cloud.Len() != p.PointsN {
			log.Printf("store key %s has %d points, want %d", key, cloud.Len(), p.PointsN)
			mismatches++
		}
	}
	return mismatches, nil
}

// listSplitDirs returns the split directories under root, skipping
// layout artifacts that are not splits.
func listSplitDirs(root string) ([]string, error) {
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	var splits []string
	for _, entry := range dirEntries {
		if !entry.IsDir() || entry.Name() == "splits" || entry.Name() == KVStoreName {
			continue
		}
		splits = append(splits, entry.Name())
	}
	return splits, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func checkCount(path string, want int) bool {
	n, err := pointio.CountPoints(path)
	if err != nil {
		log.Printf("cannot count points in %s: %v", path, err)
		return false
	}
	if n != want {
		log.Printf("point count mismatch for %s: got %d, want %d", path, n, want)
		return false
	}
	return true
}
