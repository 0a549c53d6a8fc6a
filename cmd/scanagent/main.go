package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"pharmacy-pos-api-server/config"
	"pharmacy-pos-api-server/internal/client"
	"pharmacy-pos-api-server/internal/models"
	"pharmacy-pos-api-server/internal/remote"
	"pharmacy-pos-api-server/internal/scanner"
	"pharmacy-pos-api-server/internal/socket"
	"pharmacy-pos-api-server/internal/workflow"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// scanagent is the desktop operator agent: it detects hardware-scanner key
// bursts on stdin, receives phone-relayed scans over the socket channel and
// drives the receiving-verification workflow against the API server.
//
// Scanner input is typed/pasted as plain lines; operator decisions are
// entered as ":" commands (:accept, :disc, :cancel, :done, :stop, :start).
func main() {
	godotenv.Load()

	documentID := flag.String("document", "", "documentID of the receiving document to verify")
	configPath := flag.String("config", "./config", "path to the config directory")
	flag.Parse()
	if *documentID == "" {
		log.Fatal("usage: scanagent -document DOC-XXXXXXXX")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Could not create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := client.New(cfg.Agent.APIBaseURL, cfg.Agent.Token)
	ui := &consoleUI{}

	machine := workflow.NewMachine(api, ui, logger)
	machine.SetLocation("/documents/" + *documentID + "/verify")
	machine.SetCompletedListener(func() {
		fmt.Println(">> document completed, leaving verification view")
		cancel()
	})

	if err := machine.Load(ctx, *documentID); err != nil {
		logger.Fatal("failed to load document", zap.Error(err))
	}

	// Remote scan channel: phone-relayed scans enter the same workflow as
	// keyboard scans, with source "remote".
	channel := remote.NewChannel(remote.Config{
		URL:   cfg.Agent.SocketURL,
		Token: cfg.Agent.Token,
		Role:  socket.RoleDesktop,
	}, logger)
	channel.OnScanData = func(payload models.ScanPayload) {
		machine.HandleScan(ctx, models.ScanEvent{
			Source:  models.ScanSourceRemote,
			Payload: &payload,
		})
	}
	channel.OnRequestStatus = machine.Status
	channel.OnConnectionChange = func(connected bool) {
		fmt.Printf(">> remote channel connected: %v\n", connected)
	}
	machine.SetScanningModeListener(func(scanning bool) {
		st := models.SessionStatusNotReady
		if scanning {
			st = models.SessionStatusReady
		}
		if err := channel.StatusUpdate(st, machine.Status().Location); err != nil {
			logger.Debug("status update not delivered", zap.Error(err))
		}
	})

	if err := channel.Connect(ctx); err != nil {
		// No credential: keyboard scanning still works, only the phone
		// relay is unavailable.
		logger.Warn("remote channel disabled", zap.Error(err))
	} else {
		defer channel.Close()
	}

	det := scanner.NewDetector(scanner.Config{
		TimeThreshold: time.Duration(cfg.Agent.TimeThresholdMs) * time.Millisecond,
		MinLength:     cfg.Agent.MinCodeLength,
	}, func(ev models.ScanEvent) {
		machine.HandleScan(ctx, ev)
	}, func(err error) {
		ui.ShowError(err.Error())
	}, logger)
	defer det.Stop()

	if err := machine.StartScanning(); err != nil {
		logger.Fatal("failed to start scanning", zap.Error(err))
	}
	fmt.Println(">> scanning mode on; scan a code or type :help")

	runInputLoop(ctx, machine, det, ui)
}

// runInputLoop reads stdin line by line. Plain lines are replayed into the
// detector as a key burst (what a keyboard-wedge scanner produces);
// ":"-prefixed lines are operator commands.
func runInputLoop(ctx context.Context, machine *workflow.Machine, det *scanner.Detector, ui *consoleUI) {
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := in.Text()
		if strings.HasPrefix(line, ":") {
			if handleCommand(ctx, machine, line) {
				return
			}
			continue
		}

		now := time.Now()
		for _, r := range line {
			det.HandleKey(scanner.KeyEvent{Key: string(r), Time: now})
		}
		det.HandleKey(scanner.KeyEvent{Key: "Enter", Time: now})
	}
}

// handleCommand executes one operator command; returns true to exit.
func handleCommand(ctx context.Context, machine *workflow.Machine, line string) bool {
	fields := strings.Fields(line)
	var err error
	switch fields[0] {
	case ":help":
		fmt.Println("commands: :accept [photos] | :disc <reason> <qty> [comment] | :cancel | :canceldisc <id> | :done | :start | :stop | :quit")
	case ":accept":
		photos := 0
		if len(fields) > 1 {
			photos, _ = strconv.Atoi(fields[1])
		}
		err = machine.Accept(ctx, photos)
	case ":disc":
		if len(fields) < 3 {
			fmt.Println("usage: :disc <reason> <qty> [comment]")
			return false
		}
		qty, _ := strconv.Atoi(fields[2])
		err = machine.SubmitDiscrepancy(ctx, workflow.DiscrepancyInput{
			Reason:   fields[1],
			Quantity: qty,
			Comment:  strings.Join(fields[3:], " "),
		})
	case ":cancel":
		err = machine.CancelDecision()
	case ":canceldisc":
		if len(fields) < 2 {
			fmt.Println("usage: :canceldisc <discrepancyID>")
			return false
		}
		err = machine.CancelDiscrepancy(ctx, fields[1], confirm("Cancel this discrepancy?"))
	case ":done":
		err = machine.Complete(ctx, confirm("Finish receiving this document?"))
	case ":start":
		err = machine.StartScanning()
	case ":stop":
		err = machine.StopScanning()
	case ":quit":
		return true
	default:
		fmt.Println("unknown command, try :help")
	}
	if err != nil {
		fmt.Printf(">> %v\n", err)
	}
	return false
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var answer string
	fmt.Scanln(&answer)
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
}

// consoleUI renders workflow modals and messages on the terminal.
type consoleUI struct{}

func (u *consoleUI) ShowError(msg string) { fmt.Printf("!! %s\n", msg) }
func (u *consoleUI) ShowInfo(msg string)  { fmt.Printf(">> %s\n", msg) }

func (u *consoleUI) OpenAcceptance(item models.DocumentItem) {
	fmt.Printf("-- Acceptance: %s (%s), batch %s\n", item.ProductName, item.SKU, item.BatchID)
	fmt.Printf("   expected %d, scanned %d, remaining %d\n",
		item.QuantityExpected, item.QuantityScanned, item.QuantityRemaining())
	fmt.Println("   :accept [photos] to accept, :disc to record a discrepancy, :cancel to dismiss")
}

func (u *consoleUI) OpenDiscrepancy(item models.DocumentItem) {
	fmt.Printf("-- Discrepancy for %s: reasons are expired, damaged, wrong_batch, wrong_product, quantity_mismatch, no_series, other\n", item.SKU)
}

func (u *consoleUI) CloseModals() { fmt.Println("-- modals closed") }
