package version

// Version information set via ldflags at build time
var (
	Version   = "dev"     // -X 'github.com/agusmdev/burntop/internal/version.Version=...'
	GitCommit = "unknown" // -X 'github.com/agusmdev/burntop/internal/version.GitCommit=...'
	BuildDate = "unknown" // -X 'github.com/agusmdev/burntop/internal/version.BuildDate=...'
)
