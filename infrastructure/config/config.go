package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/pocnet/pocd/infrastructure/logger"
	"github.com/pocnet/pocd/util/network"
	"github.com/pocnet/pocd/version"
)

const (
	defaultConfigFilename            = "pocd.conf"
	defaultDataDirname               = "data"
	defaultLogLevel                  = "info"
	defaultLogDirname                = "logs"
	defaultLogFilename               = "pocd.log"
	defaultErrLogFilename            = "pocd_err.log"
	defaultMaxBroadcastPeers         = 4
	defaultAcceleratedQueueThreshold = 1000
	defaultAcceleratedBatchSize      = 512
	defaultBlockCacheMB              = 40
	defaultBlockCacheCount           = 5000
	defaultMaxUnconfirmed            = 8192
	defaultChainStoreCacheSize       = 1000
)

var (
	// DefaultAppDir is the default home directory for pocd.
	DefaultAppDir = appDataDir("pocd")

	defaultConfigFile = filepath.Join(DefaultAppDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(DefaultAppDir, defaultLogDirname)
)

// Flags defines the configuration options for pocd.
//
// See loadConfig for details on the configuration load process.
type Flags struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	AppDir      string `short:"b" long:"appdir" description:"Directory to store data"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	LogDir      string `long:"logdir" description:"Directory to log output."`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	Listeners         []string `long:"listen" description:"Add an interface/port to listen for peer requests (default all interfaces port: 8123, simnet: 18123)"`
	ConnectPeers      []string `long:"connect" description:"Connect to the specified peers at startup"`
	MaxBroadcastPeers int      `long:"maxbroadcastpeers" description:"Number of peers a new block is announced to"`

	AcceleratedVerify         bool `long:"acceleratedverify" description:"Verify staged blocks in batches when the verification queue is long"`
	AcceleratedQueueThreshold int  `long:"acceleratedqueuethreshold" description:"Number of unverified blocks above which batches are verified"`
	AcceleratedBatchSize      int  `long:"acceleratedbatchsize" description:"Maximum number of blocks verified in one batch"`

	TrimDerivedTables bool `long:"trimderivedtables" description:"Trim derived table history below the rollback window"`
	ForceScan         bool `long:"forcescan" description:"Rescan the chain from genesis at startup"`
	ForceValidate     bool `long:"forcevalidate" description:"Revalidate every block during the forced rescan -- requires --forcescan"`

	BlockCacheMB    int `long:"blockcachemb" description:"Maximum size of the staged block cache, in megabytes"`
	BlockCacheCount int `long:"blockcachecount" description:"Maximum number of blocks in the staged block cache"`
	MaxUnconfirmed  int `long:"maxunconfirmed" description:"Maximum number of transactions in the unconfirmed pool"`

	MetricsListen string `long:"metricslisten" description:"Serve prometheus metrics on the given interface/port"`
	Forging       bool   `long:"forging" description:"Forge blocks with the key derived from --mnemonic-file"`
	MnemonicFile  string `long:"mnemonic-file" description:"File holding the BIP-39 mnemonic of the forging key"`
	Profile       string `long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`

	NetworkFlags
}

// Config defines the configuration options for pocd.
//
// See loadConfig for details on the configuration load process.
type Config struct {
	*Flags

	// DataDir is AppDir namespaced by the active network.
	DataDir string

	// LogFile and ErrLogFile live in LogDir.
	LogFile    string
	ErrLogFile string

	ChainStoreCacheSize int
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultAppDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

func defaultFlags() *Flags {
	return &Flags{
		AppDir:                    DefaultAppDir,
		ConfigFile:                defaultConfigFile,
		LogDir:                    defaultLogDir,
		DebugLevel:                defaultLogLevel,
		MaxBroadcastPeers:         defaultMaxBroadcastPeers,
		AcceleratedQueueThreshold: defaultAcceleratedQueueThreshold,
		AcceleratedBatchSize:      defaultAcceleratedBatchSize,
		BlockCacheMB:              defaultBlockCacheMB,
		BlockCacheCount:           defaultBlockCacheCount,
		MaxUnconfirmed:            defaultMaxUnconfirmed,
	}
}

// LoadConfig parses the process' command line and configuration file.
func LoadConfig() (*Config, error) {
	return loadConfig(os.Args[1:])
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// Command line options always take precedence.
func loadConfig(args []string) (*Config, error) {
	cfgFlags := defaultFlags()

	// Pre-parse the command line options to see if an alternative config
	// file or app directory was specified. Any errors aside from the help
	// message error can be ignored here since they will be caught by the
	// final parse below.
	preCfg := *cfgFlags
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, err
		}
	}

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		fmt.Println("pocd version", version.Version())
		os.Exit(0)
	}

	// An app directory given without a config file moves the config file
	// along with it.
	configFile := preCfg.ConfigFile
	if preCfg.AppDir != DefaultAppDir && configFile == defaultConfigFile {
		configFile = filepath.Join(preCfg.AppDir, defaultConfigFilename)
	}

	parser := flags.NewParser(cfgFlags, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(cleanAndExpandPath(configFile))
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, errors.Wrapf(err, "Error parsing config file %s", configFile)
		}
		// A missing config file is only an error when it was asked for.
		if preCfg.ConfigFile != defaultConfigFile {
			return nil, errors.Wrapf(err, "Error reading config file %s", configFile)
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	if len(remainingArgs) > 0 {
		return nil, errors.Errorf("loadConfig: unexpected arguments %s", strings.Join(remainingArgs, " "))
	}

	cfg := &Config{
		Flags:               cfgFlags,
		ChainStoreCacheSize: defaultChainStoreCacheSize,
	}
	err = cfg.validate()
	if err != nil {
		return nil, err
	}

	cfg.ResolveNetwork()

	// Append the network type to the data and log directories so they are
	// "namespaced" per network.
	cfg.AppDir = cleanAndExpandPath(cfg.AppDir)
	cfg.DataDir = filepath.Join(cfg.AppDir, cfg.NetParams().Name, defaultDataDirname)
	if cfg.LogDir == defaultLogDir && cfg.AppDir != DefaultAppDir {
		cfg.LogDir = filepath.Join(cfg.AppDir, defaultLogDirname)
	}
	cfg.LogDir = filepath.Join(cleanAndExpandPath(cfg.LogDir), cfg.NetParams().Name)
	cfg.LogFile = filepath.Join(cfg.LogDir, defaultLogFilename)
	cfg.ErrLogFile = filepath.Join(cfg.LogDir, defaultErrLogFilename)

	if cfg.MnemonicFile != "" {
		cfg.MnemonicFile = cleanAndExpandPath(cfg.MnemonicFile)
	}

	if len(cfg.Listeners) == 0 {
		cfg.Listeners = []string{net.JoinHostPort("", cfg.NetParams().DefaultPort)}
	}
	cfg.Listeners, err = network.NormalizeAddresses(cfg.Listeners, cfg.NetParams().DefaultPort)
	if err != nil {
		return nil, errors.Wrap(err, "loadConfig: invalid listener")
	}
	cfg.ConnectPeers, err = network.NormalizeAddresses(cfg.ConnectPeers, cfg.NetParams().DefaultPort)
	if err != nil {
		return nil, errors.Wrap(err, "loadConfig: invalid peer")
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}

	err = logger.ParseAndSetLogLevels(cfg.DebugLevel)
	if err != nil {
		return nil, errors.Wrap(err, "loadConfig")
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	funcName := "loadConfig"

	if cfg.MaxBroadcastPeers < 0 {
		return errors.Errorf("%s: maxbroadcastpeers may not be negative", funcName)
	}
	if cfg.AcceleratedQueueThreshold < 0 {
		return errors.Errorf("%s: acceleratedqueuethreshold may not be negative", funcName)
	}
	if cfg.AcceleratedBatchSize < 1 {
		return errors.Errorf("%s: acceleratedbatchsize must be at least 1", funcName)
	}
	if cfg.BlockCacheMB < 1 {
		return errors.Errorf("%s: blockcachemb must be at least 1", funcName)
	}
	if cfg.BlockCacheCount < 1 {
		return errors.Errorf("%s: blockcachecount must be at least 1", funcName)
	}
	if cfg.MaxUnconfirmed < 1 {
		return errors.Errorf("%s: maxunconfirmed must be at least 1", funcName)
	}
	if cfg.ForceValidate && !cfg.ForceScan {
		return errors.Errorf("%s: forcevalidate requires forcescan", funcName)
	}
	if cfg.Forging && cfg.MnemonicFile == "" {
		return errors.Errorf("%s: forging requires a mnemonic-file", funcName)
	}

	// Validate profile port number
	if cfg.Profile != "" {
		profilePort, err := strconv.Atoi(cfg.Profile)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			return errors.Errorf("%s: The profile port must be between 1024 and 65535", funcName)
		}
	}

	return nil
}
