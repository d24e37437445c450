package build

// CurrentCommit is set with -ldflags at build time
var CurrentCommit string

const BuildVersion = "0.4.0"

func UserVersion() string {
	if CurrentCommit == "" {
		return BuildVersion
	}
	return BuildVersion + "+git." + CurrentCommit
}
