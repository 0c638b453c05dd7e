package version

// Version is the appsignal-wrap release version. Overridden at build time:
//
//	go build -ldflags "-X github.com/appsignal/appsignal-wrap/internal/version.Version=1.2.3"
var Version = "0.0.0-dev"
