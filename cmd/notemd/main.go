package main

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/akeil/notemd"
	"github.com/akeil/notemd/pkg/api"
	"github.com/akeil/notemd/pkg/auth"
)

const (
	checkmark = "✓"
	crossmark = "✗"
	ellipsis  = "…"
)

// defaultClientID is the shared application registration.
const defaultClientID = "8e1a6f85-d243-41ac-a6d3-4b7fd05ce004"

// tokenEnv overrides the token cache with a raw access token.
const tokenEnv = "NOTEMD_TOKEN"

type settings struct {
	clientID  string
	tokenFile string
	logLevel  string
}

func main() {
	app := kingpin.New("notemd", "Export notebooks to Markdown")
	app.HelpFlag.Short('h')

	var s settings
	app.Flag("client-id", "Application identifier").Default(defaultClientID).StringVar(&s.clientID)
	app.Flag("token-file", "Path to the cached token").Default("./data/token.json").StringVar(&s.tokenFile)
	app.Flag("log-level", "One of debug, info, warning, error").Default("warning").StringVar(&s.logLevel)

	ls := app.Command("ls", "List notebooks, or the contents of one notebook").Default()
	lsNotebook := ls.Arg("notebook", "Show sections and pages of this notebook").String()

	dl := app.Command("download", "Download a notebook in Markdown format")
	var (
		dlNotebook = dl.Flag("notebook", "Name of the notebook").Short('n').Required().String()
		dlSection  = dl.Flag("section", "Name of the section (default: all sections)").Short('s').String()
		dlOut      = dl.Flag("output", "Output directory").Short('o').Default("./output").String()
	)

	login := app.Command("login", "Print the login URL, or store a token for an authorization code")
	loginCode := login.Flag("code", "Authorization code from the consent page").String()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	notemd.SetLogLevel(s.logLevel)

	var err error
	switch command {
	case "ls":
		err = doLs(s, *lsNotebook)
	case "download":
		err = doDownload(s, *dlNotebook, *dlSection, *dlOut)
	case "login":
		err = doLogin(s, *loginCode)
	default:
		err = fmt.Errorf("unknown command: %q", command)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}

func setupClient(ctx context.Context, s settings) (*api.Client, error) {
	var (
		tokens oauth2.TokenSource
		err    error
	)
	if tok := os.Getenv(tokenEnv); tok != "" {
		tokens = auth.StaticToken(tok)
	} else {
		tokens, err = auth.TokenSource(ctx, s.clientID, s.tokenFile)
		if err != nil {
			return nil, err
		}
	}

	return api.NewClient(api.NewSession(tokens)), nil
}

func doLogin(s settings, code string) error {
	if code == "" {
		url, _ := auth.LoginURL(s.clientID)
		fmt.Println("Open this URL in a browser and authorize the application:")
		fmt.Println(url)
		fmt.Println()
		fmt.Printf("Then run: notemd login --code <CODE>\n")
		return nil
	}

	ctx := context.Background()
	tok, err := auth.Config(s.clientID).Exchange(ctx, code)
	if err != nil {
		return err
	}

	err = auth.SaveToken(s.tokenFile, tok)
	if err != nil {
		return err
	}
	fmt.Printf("%v token saved to %q\n", checkmark, s.tokenFile)
	return nil
}
