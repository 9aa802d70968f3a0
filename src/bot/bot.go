package bot

import (
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/shelfmark/tbrbot/src/db"
	"github.com/shelfmark/tbrbot/src/discord"
	"github.com/shelfmark/tbrbot/src/jobs"
	"github.com/shelfmark/tbrbot/src/logging"
	"github.com/spf13/cobra"
)

var BotCommand = &cobra.Command{
	Use:   "shelfmark",
	Short: "Run the Shelfmark Discord bot",
	Run: func(cmd *cobra.Command, args []string) {
		defer logging.LogPanics(nil)
		logging.Info().Msg("Hello, Shelfmark!")

		var wg sync.WaitGroup

		conn := db.NewConnPool()

		wg.Add(1)
		backgroundJobs := jobs.Jobs{
			discord.RunDiscordBot(conn),
		}

		// Wait for SIGINT in the background and trigger graceful shutdown
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt)
		go func() {
			<-signals // First SIGINT (start shutdown)
			logging.Info().Msg("Shutting down the bot")

			go func() {
				unfinished := backgroundJobs.CancelAndWait(10 * time.Second)
				if len(unfinished) == 0 {
					logging.Info().Msg("Background jobs closed gracefully")
				} else {
					logging.Warn().Strs("Unfinished", unfinished).Msg("Background jobs did not finish by the deadline")
				}
				wg.Done()
			}()

			<-signals // Second SIGINT (force quit)
			logging.Warn().Strs("Unfinished background jobs", backgroundJobs.ListUnfinished()).Msg("Forcibly killed the bot")
			os.Exit(1)
		}()

		// Wait for all of the above to finish, then exit
		wg.Wait()
	},
}
