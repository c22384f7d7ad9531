package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/hakichain/hakichain/internal/upgrade"
)

func NewVersionCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the version of the hakichain CLI and build information.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var latest *upgrade.VersionInfo
			if check {
				var err error
				if latest, err = checkLatest(cmd); err != nil {
					return err
				}
			}

			if jsonOutput() {
				out := map[string]interface{}{
					"version":   GetVersion(),
					"commit":    GetCommit(),
					"buildDate": BuildDate,
					"go":        GetGoVersion(),
					"platform":  runtime.GOOS + "/" + runtime.GOARCH,
				}
				if latest != nil {
					out["latest"] = latest
				}
				return printJSON(out)
			}
			fmt.Println("HakiChain CLI")
			fmt.Println("=============")
			fmt.Printf("Version:    %s\n", GetVersion())
			fmt.Printf("Commit:     %s\n", GetCommit())
			fmt.Printf("Build Date: %s\n", BuildDate)
			fmt.Printf("Go Version: %s\n", GetGoVersion())
			fmt.Printf("OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)

			if latest != nil {
				fmt.Println()
				if latest.UpdateAvailable {
					Warning(fmt.Sprintf("Version %s is available: %s", latest.Latest, latest.DownloadURL))
				} else {
					Success(fmt.Sprintf("Up to date (latest release %s)", latest.Latest))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check for a newer release")
	return cmd
}

func checkLatest(cmd *cobra.Command) (*upgrade.VersionInfo, error) {
	hc, err := upstreamHTTP(loadConfigQuiet())
	if err != nil {
		return nil, err
	}

	var info *upgrade.VersionInfo
	err = WithSpinner("Checking for updates", func() error {
		info, err = upgrade.NewChecker(GetVersion(), hc).Check(cmd.Context())
		return err
	})
	return info, err
}
