// Command smoke checks a running site API: health, login and the public
// project endpoints.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/morf1ng/105site/logutils"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "API base URL")
	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "login email (skips login when empty)")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "login password")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client := &http.Client{Timeout: 10 * time.Second}

	failed := false
	check := func(name string, err error) {
		if err != nil {
			failed = true
			logutils.Log.WithField("check", name).Error(err)
			return
		}
		logutils.Log.WithField("check", name).Info("ok")
	}

	check("health", get(ctx, client, *baseURL+"/health", ""))
	check("projects", get(ctx, client, *baseURL+"/api/projects", ""))

	if *email != "" {
		token, err := login(ctx, client, *baseURL, *email, *password)
		check("login", err)
		if err == nil {
			check("admin roles", get(ctx, client, *baseURL+"/api/admin/roles", token))
		}
	}
	if failed {
		os.Exit(1)
	}
}

func get(ctx context.Context, client *http.Client, target, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	_, err = do(client, req)
	return err
}

func login(ctx context.Context, client *http.Client, baseURL, email, password string) (string, error) {
	form := url.Values{"email": {email}, "password": {password}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	body, err := do(client, req)
	if err != nil {
		return "", err
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("no access token in response")
	}
	return resp.AccessToken, nil
}

func do(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s %s: %d %s", req.Method, req.URL.Path, resp.StatusCode, body)
	}
	return body, nil
}
