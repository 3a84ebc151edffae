package buildinfo

import "runtime/debug"

// Set by -ldflags on release builds. Commit and build time fall back to
// the VCS metadata Go embeds in the binary.
var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

func Info() map[string]string {
    commit, builtAt := Commit, BuiltAt
    if commit == "" || builtAt == "" {
        if bi, ok := debug.ReadBuildInfo(); ok {
            for _, s := range bi.Settings {
                switch s.Key {
                case "vcs.revision":
                    if commit == "" { commit = s.Value }
                case "vcs.time":
                    if builtAt == "" { builtAt = s.Value }
                }
            }
        }
    }
    return map[string]string{
        "version": Version,
        "commit":  commit,
        "builtAt": builtAt,
    }
}
