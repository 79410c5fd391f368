package cli

import (
	"github.com/spf13/cobra"
)

// GlobalFlags holds global flag values
type GlobalFlags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
}

var globalFlags GlobalFlags

// AddGlobalFlags adds global flags to the root command
func AddGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&globalFlags.ConfigFile,
		"config",
		"",
		"config file (default is $HOME/.config/foldermirror/config.yaml)",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Verbose,
		"verbose",
		"v",
		false,
		"verbose output",
	)
	cmd.PersistentFlags().BoolVarP(
		&globalFlags.Quiet,
		"quiet",
		"q",
		false,
		"suppress non-error output",
	)
}

// GetGlobalFlags returns the global flags
func GetGlobalFlags() *GlobalFlags {
	return &globalFlags
}

// MirrorFlags holds the flags shared by the commands that operate on a
// source and replica pair
type MirrorFlags struct {
	Source        string
	Replica       string
	LogDir        string
	Interval      string
	Comparison    string
	Exclude       []string
	Parallel      int
	Bandwidth     string
	FailFast      bool
	StopOnError   bool
	CreateReplica bool
	Output        string
	LogFormat     string
	LogLevel      string
}

// addRootFlags registers the source and replica flags
func (f *MirrorFlags) addRootFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Source, "source", "s", "", "source directory path")
	cmd.Flags().StringVarP(&f.Replica, "replica", "r", "", "replica directory path")
}

// addPassFlags registers the flags that shape a pass
func (f *MirrorFlags) addPassFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Comparison, "comparison", "", "comparison method: metadata, digest, binary")
	cmd.Flags().StringSliceVar(&f.Exclude, "exclude", []string{}, "glob patterns to exclude")
	cmd.Flags().IntVarP(&f.Parallel, "parallel", "p", 0, "number of parallel copies")
	cmd.Flags().StringVarP(&f.Bandwidth, "bandwidth", "b", "", "bandwidth limit (e.g., \"10M\", \"1GiB\")")
}

// addMutationFlags registers the flags of commands that write the replica
func (f *MirrorFlags) addMutationFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.LogDir, "log-dir", "l", "", "directory holding the log file, status file and lock")
	cmd.Flags().BoolVar(&f.FailFast, "fail-fast", false, "abort a pass on the first entry error")
	cmd.Flags().BoolVar(&f.CreateReplica, "create-replica", false, "create the replica directory if it doesn't exist")
	cmd.Flags().StringVar(&f.LogFormat, "log-format", "", "log format: text, json")
	cmd.Flags().StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error")
}
