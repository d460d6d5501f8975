package main

// btcbnode is the node's command-line entry point: start the full node,
// inspect the ledger, and dump election status. Grounded on synnergy-network's
// (synnergy-network) cmd/synnergy/main.go cobra root-command shape and
// cmd/cli/consensus.go's .env-load-then-logrus-standard-logger bootstrap.

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"btcb/core"
	"btcb/pkg/config"
	"btcb/store"
	"btcb/wire"
)

func main() {
	_ = godotenv.Load()
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	rootCmd := &cobra.Command{Use: "btcbnode"}
	rootCmd.AddCommand(startCmd(log))
	rootCmd.AddCommand(genesisCmd(log))
	rootCmd.AddCommand(ledgerCmd(log))
	rootCmd.AddCommand(electionsCmd(log))
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("btcbnode: command failed")
		os.Exit(1)
	}
}

func startCmd(log *logrus.Logger) *cobra.Command {
	var env string
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start the full node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env)
			if err != nil {
				return err
			}
			if lvl, perr := logrus.ParseLevel(cfg.Logging.Level); perr == nil {
				log.SetLevel(lvl)
			}

			s := store.New()
			params := core.TestNetworkParams()
			ledger, err := core.NewLedger(s, params, log)
			if err != nil {
				return err
			}

			processor := core.NewBlockProcessor(ledger, core.SequentialVerifier{}, log)
			minWeight, err := core.DecodeU128Decimal(cfg.Node.OnlineWeightMinimum)
			if err != nil {
				minWeight = core.ZeroAmount
			}
			online := core.NewOnlineReps(5*core.AnnounceInterval(false), minWeight)
			scheduler := core.NewScheduler(ledger, processor, online, log)
			if cfg.Node.OnlineWeightQuorum > 0 {
				scheduler.QuorumPercent = cfg.Node.OnlineWeightQuorum
			}
			processor.SetScheduler(scheduler)

			gapCache := core.NewGapCache(cfg.Bootstrap.FractionNumerator)
			arrivals := core.NewArrivalBuffer()
			processor.SetArrivalBuffer(arrivals)
			processor.SetUncheckedHooks(
				func(missing core.U256, blk *core.Block) {
					voucher, _ := blk.Account()
					gapCache.Add(missing, voucher)
				},
				func(hash core.U256) { gapCache.Resolve(hash) },
			)
			scheduler.OnUnknownVote = func(hash core.U256, rep core.Account) {
				gapCache.Add(hash, rep)
				weightOf := func(a core.Account) core.U128 {
					w := core.ZeroAmount
					_ = s.View(func(t store.Txn) error {
						v, werr := core.Weight(t, a)
						if werr == nil {
							w = v
						}
						return nil
					})
					return w
				}
				if gapCache.ShouldBootstrap(hash, weightOf, online.Stake(weightOf)) {
					log.WithField("hash", hash.Hex()).Info("btcbnode: orphan hash crossed bootstrap threshold")
				}
			}

			seqCache := core.NewSequenceCache()
			callback := core.NewCallbackNotifier(cfg.Callback.Address, cfg.Callback.Port, cfg.Callback.Target, log)

			ledger.ConfirmationCallback = func(blk *core.Block, ret core.ProcessReturn) {
				var rep core.Account
				_ = s.View(func(t store.Txn) error {
					r, rerr := core.Representative(t, ret.Account)
					rep = r
					return rerr
				})
				callback.Notify(ret.Account, blk.Hash(), ret.Amount, ret.StateIsSend, rep)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			node, err := wire.NewNode(ctx, cfg.Network.ListenAddr, params.Discriminator, log)
			if err != nil {
				return err
			}
			node.OnMessage = func(from peer.ID, raw []byte) {
				_, body, status := core.Parse(raw, params)
				if status != core.ParseSuccess {
					log.WithFields(logrus.Fields{"peer": from.String(), "status": status.String()}).Debug("btcbnode: dropped unparseable gossip message")
					return
				}
				switch msg := body.(type) {
				case core.Publish:
					processor.Add(msg.Block, time.Now())
				case core.ConfirmReq:
					processor.Add(msg.Block, time.Now())
				case core.ConfirmAck:
					v := msg.Vote
					if !v.Verify() {
						return
					}
					var weight core.U128
					_ = s.View(func(t store.Txn) error {
						w, werr := core.Weight(t, v.Account)
						weight = w
						return werr
					})
					if weight.IsZero() {
						return
					}
					if seqCache.Check(v.Account, v.Sequence) != core.SeqVote {
						return
					}
					online.Observe(v.Account, time.Now())
					scheduler.Tally(v, weight)
				}
			}
			defer node.Close()

			go processor.Run(ctx)

			peers := core.NewPeerTable(core.Endpoint{})
			announcer := core.NewAnnouncer(scheduler, peers, core.AnnounceInterval(false), log)
			go announcer.Run(ctx)

			if httpAddr != "" {
				go serveElectionHTTP(httpAddr, scheduler, log)
			}

			log.WithField("listen", cfg.Network.ListenAddr).Info("btcbnode: started")

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig
			log.Info("btcbnode: shutting down")
			processor.Flush()
			return nil
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "environment overlay to merge (e.g. test, beta, live)")
	cmd.Flags().StringVar(&httpAddr, "rpc-addr", "", "address to serve the election introspection HTTP API on (empty disables it)")
	return cmd
}

func genesisCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "genesis",
		Short: "print the network's genesis block and account",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := core.TestNetworkParams()
			fmt.Printf("genesis account: %s\n", core.EncodeAccount("btcb", params.GenesisAccount))
			fmt.Printf("genesis hash: %s\n", params.GenesisOpen.Hash().Hex())
			fmt.Printf("max supply: %s\n", params.MaxSupply.DecimalString())
			return nil
		},
	}
}

func ledgerCmd(log *logrus.Logger) *cobra.Command {
	var accountStr string
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "inspect an account's ledger state",
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := core.DecodeAccount("btcb", accountStr)
			if err != nil {
				return err
			}
			s := store.New()
			params := core.TestNetworkParams()
			if _, err := core.NewLedger(s, params, log); err != nil {
				return err
			}

			var balance core.U128
			var head core.U256
			var found bool
			if err := s.View(func(t store.Txn) error {
				var verr error
				balance, verr = core.AccountBalance(t, account)
				if verr != nil {
					return verr
				}
				head, found, verr = core.Latest(t, account)
				return verr
			}); err != nil {
				return err
			}
			fmt.Printf("balance: %s\n", balance.DecimalString())
			fmt.Printf("head: %s (found=%v)\n", head.Hex(), found)
			return nil
		},
	}
	cmd.Flags().StringVar(&accountStr, "account", "", "account address to inspect")
	return cmd
}

func electionsCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "elections",
		Short: "point at a running node's RPC surface for live election status",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("this command reads from a running node's --rpc-addr; point a browser or curl at /elections")
			return nil
		},
	}
}

func serveElectionHTTP(addr string, scheduler *core.Scheduler, log *logrus.Logger) {
	router := core.NewElectionRouter(scheduler)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Error("btcbnode: election http server failed")
	}
}
