package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Camera is one video capture device
type Camera struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	Name  string `json:"name"`
}

// device roots, swapped in tests
var (
	devRoot   = "/dev"
	sysfsRoot = "/sys/class/video4linux"
)

func devicePath(index int) string {
	return filepath.Join(devRoot, fmt.Sprintf("video%d", index))
}

// ListCameras enumerates /dev/video* with their V4L2 names, ordered by index
func ListCameras() ([]Camera, error) {
	matches, err := filepath.Glob(filepath.Join(devRoot, "video*"))
	if err != nil {
		return nil, err
	}

	cams := make([]Camera, 0, len(matches))
	for _, path := range matches {
		idx, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), "video"))
		if err != nil {
			continue
		}
		name := fmt.Sprintf("video%d", idx)
		if data, err := os.ReadFile(filepath.Join(sysfsRoot, name, "name")); err == nil {
			name = strings.TrimSpace(string(data))
		}
		cams = append(cams, Camera{Index: idx, Path: path, Name: name})
	}

	sort.Slice(cams, func(i, j int) bool { return cams[i].Index < cams[j].Index })
	return cams, nil
}
