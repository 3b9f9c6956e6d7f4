package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jameskwon07/deploymaster/agent"
	"github.com/jameskwon07/deploymaster/config"
	"github.com/jameskwon07/deploymaster/deploy"
	"github.com/jameskwon07/deploymaster/domain"
	"github.com/jameskwon07/deploymaster/github"
	"github.com/jameskwon07/deploymaster/masterclient"
)

var configPath = flag.String("config", "agent.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	// Load .env if present (GITHUB_TOKEN)
	_ = godotenv.Load()

	cfg, err := config.LoadAgent(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	identity := agent.Identity{
		Name:      cfg.Name,
		Platform:  domain.ParsePlatform(cfg.Platform),
		Version:   cfg.Version,
		IPAddress: outboundIP(),
	}

	log.Printf("Agent starting: name=%s platform=%s version=%s", identity.Name, identity.Platform, identity.Version)
	log.Printf("Master: %s", cfg.MasterURL)
	log.Printf("Staging dir: %s", cfg.StagingDir)

	master := masterclient.NewClient(cfg.MasterURL)
	host := github.NewClient(cfg.GitHubToken)
	executor := deploy.NewExecutor(master, host, identity.Platform, cfg.StagingDir)

	session := &agent.Session{}
	runner := agent.NewRunner(identity, session, master, executor, cfg.Interval)

	// Run until terminated. The runner finishes any in-flight tick and
	// unregisters before returning.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner.Run(ctx)

	log.Println("Agent stopped")
}

// outboundIP reports the local address used to reach the outside, or empty
// when it cannot be determined. The registry treats it as optional.
func outboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return ""
}
