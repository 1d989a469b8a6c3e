package workflow

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// newTempAudioPath generates a fresh, collision-resistant path under dir
// for one TTS output file (§4.8 step 8). The token is a UUID rather than a
// session-derived name so concurrent requests for the same session never
// collide.
func newTempAudioPath(dir, ext string) string {
	return filepath.Join(dir, uuid.NewString()+ext)
}

// cleanupTempAudio removes the temporary file at path, the scoped cleanup
// required on every exit path of stages 8 and 9 (§4.8 invariants). Safe to
// call with an empty path or a path that no longer exists.
func cleanupTempAudio(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("workflow: failed to remove temporary audio file", "path", path, "err", err)
	}
}
