package main

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/philhumber/wineApp-sub000/internal/identify"
	"github.com/philhumber/wineApp-sub000/internal/stream"
)

var (
	identifyText     string
	identifyImage    string
	identifyTier     int
	identifyForceTop bool
	identifyStream   bool
	identifyServer   string
)

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Identify a wine from text or a label photo",
	RunE: func(cmd *cobra.Command, args []string) error {
		if identifyText == "" && identifyImage == "" {
			return eris.New("either --text or --image is required")
		}

		if identifyServer != "" {
			if !identifyStream {
				return eris.New("--server requires --stream")
			}
			payload := struct {
				Text           string `json:"text,omitempty"`
				ImageData      string `json:"image_data,omitempty"`
				ImageMediaType string `json:"image_media_type,omitempty"`
				Tier           int    `json:"tier,omitempty"`
				ForceTopTier   bool   `json:"force_top_tier,omitempty"`
			}{
				Text:         identifyText,
				Tier:         identifyTier,
				ForceTopTier: identifyForceTop,
			}
			if identifyImage != "" {
				data, mediaType, rerr := readImage(identifyImage)
				if rerr != nil {
					return rerr
				}
				payload.ImageData = data
				payload.ImageMediaType = mediaType
			}
			return streamFromServer(cmd.Context(), identifyServer, "/v1/identify/stream", payload)
		}

		env, err := initEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		in := identify.Input{
			Text:         identifyText,
			Tier:         identifyTier,
			ForceTopTier: identifyForceTop,
		}
		if identifyImage != "" {
			data, mediaType, rerr := readImage(identifyImage)
			if rerr != nil {
				return rerr
			}
			in.ImageData = data
			in.ImageMediaType = mediaType
		}

		if identifyStream {
			_, err = env.Identify.IdentifyStream(cmd.Context(), in, printEvent)
			return err
		}

		res, err := env.Identify.Identify(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

func readImage(path string) (string, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", eris.Wrap(err, "read image")
	}
	mediaType := "image/jpeg"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mediaType = "image/png"
	case ".webp":
		mediaType = "image/webp"
	case ".gif":
		mediaType = "image/gif"
	}
	return base64.StdEncoding.EncodeToString(raw), mediaType, nil
}

func printEvent(ev stream.Event) {
	if data, err := stream.Encode(ev); err == nil {
		os.Stdout.Write(data)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	identifyCmd.Flags().StringVar(&identifyText, "text", "", "free-text wine description")
	identifyCmd.Flags().StringVar(&identifyImage, "image", "", "path to a label photo")
	identifyCmd.Flags().IntVar(&identifyTier, "tier", 0, "starting tier (default 1)")
	identifyCmd.Flags().BoolVar(&identifyForceTop, "force-top-tier", false, "jump straight to the strongest model")
	identifyCmd.Flags().BoolVar(&identifyStream, "stream", false, "print streaming events instead of the final result")
	identifyCmd.Flags().StringVar(&identifyServer, "server", "", "base URL of a running serve instance; decode its event stream instead of running in-process")
	rootCmd.AddCommand(identifyCmd)
}
