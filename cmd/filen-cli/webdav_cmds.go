package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/filen-go/filen-cli/internal/webdavfs"
)

// webdavPort resolves the effective port: --port overrides the
// persisted config, which itself defaults to 8080.
func webdavPort(cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

func buildWebDAVHandler(a *app, username, password string) http.Handler {
	fs := webdavfs.New(a.resolver, a.engine, a.creds.LatestMasterKey())
	return webdavfs.NewHandler(fs, username, password)
}

// serveWebDAV runs the listener in the foreground until ctx is
// cancelled; used by both `mount` and the spawned `--daemon` child.
func serveWebDAV(ctx context.Context, a *app, port int, useTLS bool) error {
	cfg, err := a.store.ReadWebDAVConfig()
	if err != nil {
		return err
	}
	handler := buildWebDAVHandler(a, cfg.Username, cfg.Password)

	addr := ":" + strconv.Itoa(port)
	server := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		if useTLS {
			certPath, keyPath, err := a.daemonMgr.EnsureSSLCert()
			if err != nil {
				errCh <- err
				return
			}
			errCh <- server.ListenAndServeTLS(certPath, keyPath)
			return
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return server.Close()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Run the WebDAV server in the foreground until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		cfg, err := a.store.ReadWebDAVConfig()
		if err != nil {
			return err
		}
		port := webdavPort(cfg.Port)
		fmt.Printf("mounting drive via WebDAV on port %d, press Ctrl+C to stop\n", port)
		return serveWebDAV(cmd.Context(), a, port, cfg.Protocol == "https")
	},
}

var webdavStartCmd = &cobra.Command{
	Use:   "webdav-start",
	Short: "Start the WebDAV server, in the foreground unless --background spawns a detached child",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireSession(cmd)
		if err != nil {
			return err
		}
		cfg, err := a.store.ReadWebDAVConfig()
		if err != nil {
			return err
		}
		port := webdavPort(cfg.Port)

		if flagDaemon {
			return serveWebDAV(cmd.Context(), a, port, cfg.Protocol == "https")
		}

		if !flagBackground {
			fmt.Printf("starting WebDAV server on port %d, press Ctrl+C to stop\n", port)
			return serveWebDAV(cmd.Context(), a, port, cfg.Protocol == "https")
		}

		pid, err := a.daemonMgr.StartBackground(cmd.Context(), "webdav-start", "--port", strconv.Itoa(port))
		if err != nil {
			return err
		}
		fmt.Printf("WebDAV server started in the background (pid %d)\n", pid)
		return nil
	},
}

var webdavStopCmd = &cobra.Command{
	Use:   "webdav-stop",
	Short: "Stop the background WebDAV server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		cfg, err := a.store.ReadWebDAVConfig()
		if err != nil {
			return err
		}
		if err := a.daemonMgr.Stop(webdavPort(cfg.Port)); err != nil {
			return err
		}
		fmt.Println("WebDAV server stopped")
		return nil
	},
}

var webdavStatusCmd = &cobra.Command{
	Use:   "webdav-status",
	Short: "Report whether the background WebDAV server is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		pid, running := a.daemonMgr.IsRunning()
		if running {
			fmt.Printf("running (pid %d)\n", pid)
			return nil
		}
		fmt.Println("not running")
		return nil
	},
}

var webdavTestCmd = &cobra.Command{
	Use:   "webdav-test",
	Short: "Probe the WebDAV server with an authenticated PROPFIND",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		cfg, err := a.store.ReadWebDAVConfig()
		if err != nil {
			return err
		}
		port := webdavPort(cfg.Port)
		if err := a.daemonMgr.Test(cmd.Context(), cfg.Protocol, port, cfg.Username, cfg.Password); err != nil {
			return err
		}
		fmt.Println("WebDAV server is reachable and authentication works")
		return nil
	},
}

var webdavMountCmd = &cobra.Command{
	Use:   "webdav-mount",
	Short: "Print OS-specific instructions for mounting the WebDAV server as a drive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		cfg, err := a.store.ReadWebDAVConfig()
		if err != nil {
			return err
		}
		port := webdavPort(cfg.Port)
		url := fmt.Sprintf("%s://localhost:%d/", cfg.Protocol, port)

		fmt.Printf("Server URL: %s\nUsername:   %s\nPassword:   %s\n\n", url, cfg.Username, cfg.Password)
		fmt.Println("--- macOS ---")
		fmt.Println("1. Open Finder")
		fmt.Println("2. Press Cmd+K (Go > Connect to Server)")
		fmt.Printf("3. Enter: %s\n4. Connect, then enter username and password.\n\n", url)
		fmt.Println("--- Windows ---")
		fmt.Println("1. Open File Explorer")
		fmt.Println("2. Right-click \"This PC\" > \"Map network drive...\"")
		fmt.Printf("3. Enter: %s\n4. Check \"Connect using different credentials\"\n5. Connect, then enter username and password.\n\n", url)
		fmt.Println("--- Linux (davfs2) ---")
		fmt.Println("sudo apt install davfs2")
		fmt.Println("sudo mkdir -p /mnt/filen")
		fmt.Printf("sudo mount -t davfs %s /mnt/filen\n", url)
		return nil
	},
}

var (
	webdavConfigUsername string
	webdavConfigPassword string
	webdavConfigPort     int
)

var webdavConfigCmd = &cobra.Command{
	Use:   "webdav-config",
	Short: "Show or edit the persisted WebDAV username, password, and port",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		cfg, err := a.store.ReadWebDAVConfig()
		if err != nil {
			return err
		}
		if webdavConfigUsername == "" && webdavConfigPassword == "" && webdavConfigPort == 0 {
			fmt.Printf("Host: localhost\nPort: %d\nUser: %s\nPass: %s\nProtocol: %s\n", cfg.Port, cfg.Username, cfg.Password, cfg.Protocol)
			return nil
		}
		if webdavConfigUsername != "" {
			cfg.Username = webdavConfigUsername
		}
		if webdavConfigPassword != "" {
			cfg.Password = webdavConfigPassword
		}
		if webdavConfigPort != 0 {
			cfg.Port = webdavConfigPort
		}
		if err := a.store.SaveWebDAVConfig(cfg); err != nil {
			return err
		}
		fmt.Println("WebDAV configuration updated")
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the local data directory layout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		paths := a.store.Paths()
		fmt.Printf("Config dir:   %s\n", paths.DataDir)
		fmt.Printf("Credentials:  %s\n", paths.CredentialsFile)
		fmt.Printf("Batch states: %s\n", paths.BatchStateDir)
		fmt.Printf("WebDAV PID:   %s\n", paths.WebDAVPIDFile)
		fmt.Printf("WebDAV SSL:   %s\n", paths.WebDAVSSLDir)
		return nil
	},
}

func init() {
	webdavConfigCmd.Flags().StringVar(&webdavConfigUsername, "username", "", "set the WebDAV basic-auth username")
	webdavConfigCmd.Flags().StringVar(&webdavConfigPassword, "password", "", "set the WebDAV basic-auth password")
	webdavConfigCmd.Flags().IntVar(&webdavConfigPort, "port", 0, "set the default WebDAV port")

	rootCmd.AddCommand(mountCmd, webdavStartCmd, webdavStopCmd, webdavStatusCmd, webdavTestCmd, webdavMountCmd, webdavConfigCmd, configCmd)
}
