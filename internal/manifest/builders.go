package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// defaultExtensions lists the source file extensions picked up by the
// directory scanners. Matches the formats internal/pointio can read.
var defaultExtensions = map[string]bool{
	".ply": true,
	".pcd": true,
	".txt": true,
	".csv": true,
	".xyz": true,
}

// BuildOptions controls BuildSimpleEntries.
type BuildOptions struct {
	// AllowedExt restricts which file extensions are picked up.
	// Empty means the default supported set.
	AllowedExt []string
	// DefaultCategory is used when no top-level folder structure
	// exists under the base directory.
	DefaultCategory string
	// UseFolderCategory treats top-level folder names as categories
	// when at least one file lives inside a subdirectory.
	UseFolderCategory bool
}

func normalizeExtensions(exts []string) map[string]bool {
	if len(exts) == 0 {
		return defaultExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	if len(allowed) == 0 {
		return defaultExtensions
	}
	return allowed
}

// BuildSimpleEntries infers object-role entries from an arbitrary
// directory of point cloud files. Top-level folder names become
// categories when present; duplicate file stems within a category get
// a numeric suffix so model IDs stay unique.
func BuildSimpleEntries(base string, opts BuildOptions) ([]*Entry, error) {
	allowed := normalizeExtensions(opts.AllowedExt)
	if opts.DefaultCategory == "" {
		opts.DefaultCategory = "default"
	}

	var files []string
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if allowed[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", base, err)
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, nil
	}

	// Categories only apply when some file actually sits inside a
	// subdirectory; a flat folder of files uses the default category.
	anyNested := false
	for _, file := range files {
		rel, err := filepath.Rel(base, file)
		if err != nil {
			return nil, err
		}
		if strings.ContainsRune(rel, filepath.Separator) {
			anyNested = true
			break
		}
	}
	useCategories := opts.UseFolderCategory && anyNested

	counts := make(map[string]map[string]int)
	entries := make([]*Entry, 0, len(files))
	for _, file := range files {
		rel, err := filepath.Rel(base, file)
		if err != nil {
			return nil, err
		}
		parts := strings.Split(rel, string(filepath.Separator))
		category := opts.DefaultCategory
		if useCategories && len(parts) > 1 {
			category = parts[0]
		}
		category = Sanitize(category)
		stem := Sanitize(strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)))

		if counts[category] == nil {
			counts[category] = make(map[string]int)
		}
		counts[category][stem]++
		modelID := stem
		if idx := counts[category][stem]; idx > 1 {
			modelID = fmt.Sprintf("%s_%d", stem, idx)
		}
		entries = append(entries, &Entry{
			Path:     file,
			Role:     RoleObject,
			Category: category,
			ModelID:  modelID,
			Split:    SplitTrain,
		})
	}
	return entries, nil
}

// ScanPairedTree infers entries from a PCN-style source tree:
// base/partial/<category>/<model>/<view>.<ext> plus
// base/complete/<category>/<model>.<ext>. Missing role directories are
// skipped silently.
func ScanPairedTree(base string, categoryMap map[string]string) ([]*Entry, error) {
	var entries []*Entry
	for _, role := range []string{RolePartial, RoleComplete} {
		roleDir := filepath.Join(base, role)
		catDirs, err := os.ReadDir(roleDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("scan %s: %w", roleDir, err)
		}
		for _, catDir := range catDirs {
			if !catDir.IsDir() {
				continue
			}
			category := remapCategory(catDir.Name(), categoryMap)
			if role == RoleComplete {
				found, err := scanCompleteModels(filepath.Join(roleDir, catDir.Name()), category)
				if err != nil {
					return nil, err
				}
				entries = append(entries, found...)
				continue
			}
			found, err := scanPartialModels(filepath.Join(roleDir, catDir.Name()), category)
			if err != nil {
				return nil, err
			}
			entries = append(entries, found...)
		}
	}
	return entries, nil
}

func scanPartialModels(catDir, category string) ([]*Entry, error) {
	modelDirs, err := os.ReadDir(catDir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", catDir, err)
	}
	var entries []*Entry
	for _, modelDir := range modelDirs {
		if !modelDir.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(catDir, modelDir.Name()))
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			ext := strings.ToLower(filepath.Ext(file.Name()))
			if file.IsDir() || !defaultExtensions[ext] {
				continue
			}
			entries = append(entries, &Entry{
				Path:     filepath.Join(catDir, modelDir.Name(), file.Name()),
				Role:     RolePartial,
				Category: category,
				ModelID:  modelDir.Name(),
				ViewID:   strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())),
				Split:    SplitTrain,
			})
		}
	}
	return entries, nil
}

func scanCompleteModels(catDir, category string) ([]*Entry, error) {
	files, err := os.ReadDir(catDir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", catDir, err)
	}
	var entries []*Entry
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file.Name()))
		if file.IsDir() || !defaultExtensions[ext] {
			continue
		}
		entries = append(entries, &Entry{
			Path:     filepath.Join(catDir, file.Name()),
			Role:     RoleComplete,
			Category: category,
			ModelID:  strings.TrimSuffix(file.Name(), filepath.Ext(file.Name())),
			Split:    SplitTrain,
		})
	}
	return entries, nil
}

// ScanFlatTree infers object entries from a ShapeNet-style source tree:
// base/<category>/<model>/ with the first supported file inside each
// model directory used as the sample.
func ScanFlatTree(base string, categoryMap map[string]string) ([]*Entry, error) {
	catDirs, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", base, err)
	}
	var entries []*Entry
	for _, catDir := range catDirs {
		if !catDir.IsDir() {
			continue
		}
		category := remapCategory(catDir.Name(), categoryMap)
		modelDirs, err := os.ReadDir(filepath.Join(base, catDir.Name()))
		if err != nil {
			return nil, err
		}
		for _, modelDir := range modelDirs {
			if !modelDir.IsDir() {
				continue
			}
			files, err := os.ReadDir(filepath.Join(base, catDir.Name(), modelDir.Name()))
			if err != nil {
				return nil, err
			}
			for _, file := range files {
				ext := strings.ToLower(filepath.Ext(file.Name()))
				if file.IsDir() || !defaultExtensions[ext] {
					continue
				}
				entries = append(entries, &Entry{
					Path:     filepath.Join(base, catDir.Name(), modelDir.Name(), file.Name()),
					Role:     RoleObject,
					Category: category,
					ModelID:  modelDir.Name(),
					Split:    SplitTrain,
				})
				break
			}
		}
	}
	return entries, nil
}

func remapCategory(category string, categoryMap map[string]string) string {
	if mapped, ok := categoryMap[category]; ok {
		return mapped
	}
	return category
}
