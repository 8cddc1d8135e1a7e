package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"
)

const defaultServerAddr = "http://localhost:5000"

type FileClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewFileClient(baseURL, token string) *FileClient {
	return &FileClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type fileRecord struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	IsPublic bool            `json:"isPublic"`
	ParentID json.RawMessage `json:"parentId"`
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (fc *FileClient) do(ctx context.Context, method, path string, body any, out any, configure func(*http.Request)) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fc.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if fc.token != "" {
		req.Header.Set("X-Token", fc.token)
	}
	if configure != nil {
		configure(req)
	}

	resp, err := fc.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &apiError{Status: resp.StatusCode, Message: e.Error}
	}

	switch v := out.(type) {
	case nil:
		return nil
	case io.Writer:
		_, err = io.Copy(v, resp.Body)
		return err
	default:
		return json.NewDecoder(resp.Body).Decode(out)
	}
}

func (fc *FileClient) Register(ctx context.Context, email, password string) error {
	return fc.do(ctx, http.MethodPost, "/users", map[string]string{"email": email, "password": password}, nil, nil)
}

// Login returns a fresh session token.
func (fc *FileClient) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := fc.do(ctx, http.MethodGet, "/connect", nil, &out, func(r *http.Request) {
		r.SetBasicAuth(email, password)
	})
	return out.Token, err
}

func (fc *FileClient) Logout(ctx context.Context) error {
	return fc.do(ctx, http.MethodGet, "/disconnect", nil, nil, nil)
}

// UploadFile sends a local file. Images get thumbnails server side.
func (fc *FileClient) UploadFile(ctx context.Context, filePath, parentID string, public bool) (*fileRecord, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var out fileRecord
	err = fc.do(ctx, http.MethodPost, "/files", map[string]any{
		"name":     filepath.Base(filePath),
		"type":     detectFileType(filePath),
		"parentId": parentID,
		"isPublic": public,
		"data":     base64.StdEncoding.EncodeToString(data),
	}, &out, nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (fc *FileClient) CreateFolder(ctx context.Context, name, parentID string) (*fileRecord, error) {
	var out fileRecord
	err := fc.do(ctx, http.MethodPost, "/files", map[string]any{
		"name": name, "type": "folder", "parentId": parentID,
	}, &out, nil)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (fc *FileClient) ListFiles(ctx context.Context, parentID string, page int) ([]fileRecord, error) {
	q := url.Values{}
	q.Set("parentId", parentID)
	q.Set("page", fmt.Sprint(page))

	var out []fileRecord
	if err := fc.do(ctx, http.MethodGet, "/files?"+q.Encode(), nil, &out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func (fc *FileClient) SetPublic(ctx context.Context, fileID string, public bool) error {
	action := "unpublish"
	if public {
		action = "publish"
	}
	return fc.do(ctx, http.MethodPut, "/files/"+url.PathEscape(fileID)+"/"+action, nil, nil, nil)
}

// DownloadFile writes the content, or a thumbnail when size > 0, to outputPath.
func (fc *FileClient) DownloadFile(ctx context.Context, fileID string, size int, outputPath string) error {
	path := "/files/" + url.PathEscape(fileID) + "/data"
	if size > 0 {
		path += fmt.Sprintf("?size=%d", size)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	return fc.do(ctx, http.MethodGet, path, nil, out, nil)
}

func detectFileType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff":
		return "image"
	default:
		return "file"
	}
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: client [-server URL] [-token TOKEN] <command> [args]

commands:
  register <email>
  login <email>
  logout
  mkdir <name> [parentId]
  upload <path> [parentId] [-public]
  ls [parentId] [page]
  publish <fileId>
  unpublish <fileId>
  get <fileId> <output> [size]
`)
}

func main() {
	server := flag.String("server", envOr("FILES_SERVER", defaultServerAddr), "server base URL")
	token := flag.String("token", os.Getenv("FILES_TOKEN"), "session token")
	public := flag.Bool("public", false, "make uploads public")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	client := NewFileClient(*server, *token)
	ctx := context.Background()

	if err := runCommand(ctx, client, args, *public); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			log.Fatalf("server error %s", apiErr)
		}
		log.Fatal(err)
	}
}

func runCommand(ctx context.Context, client *FileClient, args []string, public bool) error {
	arg := func(i int, def string) string {
		if i < len(args) {
			return args[i]
		}
		return def
	}

	switch args[0] {
	case "register":
		pw, err := readPassword()
		if err != nil {
			return err
		}
		if err := client.Register(ctx, arg(1, ""), pw); err != nil {
			return err
		}
		fmt.Println("✓ Registered")

	case "login":
		pw, err := readPassword()
		if err != nil {
			return err
		}
		tok, err := client.Login(ctx, arg(1, ""), pw)
		if err != nil {
			return err
		}
		fmt.Println(tok)

	case "logout":
		if err := client.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("✓ Logged out")

	case "mkdir":
		rec, err := client.CreateFolder(ctx, arg(1, ""), arg(2, "0"))
		if err != nil {
			return err
		}
		fmt.Printf("✓ Created folder %s (ID: %s)\n", rec.Name, rec.ID)

	case "upload":
		rec, err := client.UploadFile(ctx, arg(1, ""), arg(2, "0"), public)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Uploaded: %s (ID: %s, type: %s)\n", rec.Name, rec.ID, rec.Type)

	case "ls":
		var page int
		fmt.Sscan(arg(2, "0"), &page)
		files, err := client.ListFiles(ctx, arg(1, "0"), page)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Found %d files:\n", len(files))
		for i, f := range files {
			fmt.Printf("  %d. %s (ID: %s, %s, public=%t)\n", i+1, f.Name, f.ID, f.Type, f.IsPublic)
		}

	case "publish", "unpublish":
		if err := client.SetPublic(ctx, arg(1, ""), args[0] == "publish"); err != nil {
			return err
		}
		fmt.Printf("✓ %sed\n", args[0])

	case "get":
		var size int
		fmt.Sscan(arg(3, "0"), &size)
		if err := client.DownloadFile(ctx, arg(1, ""), size, arg(2, "download")); err != nil {
			return err
		}
		fmt.Println("✓ File downloaded successfully")

	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
