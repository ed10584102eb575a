package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/philhumber/wineApp-sub000/internal/enrich"
)

var (
	enrichProducer     string
	enrichWine         string
	enrichVintageFlag  string
	enrichConfirm      bool
	enrichForceRefresh bool
	enrichStreamFlag   bool
	enrichServer       string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich an identified wine with researched details",
	RunE: func(cmd *cobra.Command, args []string) error {
		if enrichProducer == "" && enrichWine == "" {
			return eris.New("either --producer or --wine is required")
		}

		req := enrich.Request{
			Producer:     enrichProducer,
			WineName:     enrichWine,
			Vintage:      enrichVintageFlag,
			ConfirmMatch: enrichConfirm,
			ForceRefresh: enrichForceRefresh,
		}

		if enrichServer != "" {
			if !enrichStreamFlag {
				return eris.New("--server requires --stream")
			}
			return streamFromServer(cmd.Context(), enrichServer, "/v1/enrich/stream", req)
		}

		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if enrichStreamFlag {
			_, err = env.Enrich.EnrichStream(cmd.Context(), req, printEvent)
			return err
		}

		out, err := env.Enrich.Enrich(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichProducer, "producer", "", "producer name")
	enrichCmd.Flags().StringVar(&enrichWine, "wine", "", "wine name")
	enrichCmd.Flags().StringVar(&enrichVintageFlag, "vintage", "", "vintage year")
	enrichCmd.Flags().BoolVar(&enrichConfirm, "confirm-match", false, "accept the fuzzy match offered by a prior call")
	enrichCmd.Flags().BoolVar(&enrichForceRefresh, "force-refresh", false, "bypass the cache and research live")
	enrichCmd.Flags().BoolVar(&enrichStreamFlag, "stream", false, "print streaming events instead of the final result")
	enrichCmd.Flags().StringVar(&enrichServer, "server", "", "base URL of a running serve instance; decode its event stream instead of running in-process")
	rootCmd.AddCommand(enrichCmd)
}
