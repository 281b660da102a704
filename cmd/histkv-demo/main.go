// Command histkv-demo is a small REPL-style CLI driving a BufferedBTree
// through dbmanager, auth and clients, in the spirit of the
// source's own (never-built) server binary -- no pack example ships a
// main package to ground this on directly, so the flag parsing follows
// stdlib's own "flag" package and output follows the teacher's plain
// fmt.Println texture (see DESIGN.md).
package main

import (
	"bufio"
	"crypto/cipher"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/chiefnoah/histkv"
	"github.com/chiefnoah/histkv/dbmanager"
	"github.com/chiefnoah/histkv/internal/auth"
	"github.com/chiefnoah/histkv/internal/clients"
	"github.com/goccy/go-json"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// encryptSalt is the fixed argon2 salt used to derive the demo's at-rest
// value cipher from -encrypt-key. A real deployment would persist a
// random per-database salt instead; this binary only needs to exercise
// the datalog.Logger Cipher path end to end (see DESIGN.md).
var encryptSalt = []byte("histkv-demo-fixed-salt-")

// deriveAEAD turns a passphrase into an XChaCha20-Poly1305 AEAD via
// argon2id, so -encrypt-key never has to be exactly chacha20poly1305's
// key size.
func deriveAEAD(passphrase string) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(passphrase), encryptSalt, 1, 64*1024, 4, chacha20poly1305.KeySize)
	return chacha20poly1305.NewX(key)
}

func main() {
	basePath := flag.String("data", "./histkv-data", "base directory holding one subdirectory per database")
	cacheSize := flag.Int("history-cache", 256, "history index page cache size (0 disables caching)")
	encryptKey := flag.String("encrypt-key", "", "if set, seal value payloads at rest with a key derived from this passphrase (XChaCha20-Poly1305)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var aead cipher.AEAD
	if *encryptKey != "" {
		var err error
		aead, err = deriveAEAD(*encryptKey)
		if err != nil {
			fmt.Println("error deriving encryption key:", err)
			os.Exit(1)
		}
	}

	mgr := dbmanager.NewManager(*basePath, *cacheSize, aead)
	defer mgr.Close()

	authMgr := auth.NewManager(logger)
	clientMgr := clients.NewManager()
	clientMgr.Add(1)

	fmt.Println("histkv-demo -- type 'help' for commands, 'quit' to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])
		args := fields[1:]

		switch cmd {
		case "quit", "exit":
			return
		case "help":
			printHelp()
		case "createdb":
			runOrPrint(args, 1, func() error { return mgr.CreateDatabase(args[0]) })
		case "dropdb":
			runOrPrint(args, 1, func() error { return mgr.DropDatabase(args[0]) })
		case "usedb":
			runOrPrint(args, 1, func() error { return mgr.UseDatabase(args[0]) })
		case "showdbs":
			names, err := mgr.ShowDatabases()
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			fmt.Println(strings.Join(names, ", "))
		case "put":
			if len(args) < 2 {
				fmt.Println("usage: put <key> <value>")
				break
			}
			tree, err := mgr.Tree()
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			tx, err := tree.Put([]byte(args[0]), []byte(strings.Join(args[1:], " ")))
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			fmt.Println("ok, tx =", tx.String())
		case "get":
			if len(args) != 1 {
				fmt.Println("usage: get <key>")
				break
			}
			tree, err := mgr.Tree()
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			v, ok := tree.Get([]byte(args[0]))
			if !ok {
				fmt.Println("(not found)")
				break
			}
			fmt.Println(string(v))
		case "delete":
			if len(args) != 1 {
				fmt.Println("usage: delete <key>")
				break
			}
			tree, err := mgr.Tree()
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			tx, err := tree.Delete([]byte(args[0]))
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			fmt.Println("ok, tx =", tx.String())
		case "asof":
			if len(args) != 2 {
				fmt.Println("usage: asof <key> <tx>")
				break
			}
			tree, err := mgr.Tree()
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			txVal, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			v, found, err := tree.AsOf([]byte(args[0]), histkv.TXFromUint64(txVal))
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			if !found {
				fmt.Println("(not found)")
				break
			}
			fmt.Println(string(v))
		case "dump":
			tree, err := mgr.Tree()
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			if err := printDump(tree); err != nil {
				fmt.Println("error:", err)
			}
		case "adduser":
			runOrPrint(args, 2, func() error { return authMgr.CreateUser(args[0], args[1]) })
		case "login":
			if len(args) != 2 {
				fmt.Println("usage: login <username> <password>")
				break
			}
			roles, err := authMgr.Authenticate(args[0], args[1])
			if err != nil {
				fmt.Println("error:", err)
				break
			}
			clientMgr.SetUser(1, args[0])
			fmt.Println("logged in, roles:", strings.Join(roles, ","))
		case "whoami":
			if user, ok := clientMgr.User(1); ok {
				fmt.Println(user)
			} else {
				fmt.Println("(not authenticated)")
			}
		default:
			fmt.Println("unknown command:", cmd)
		}
	}
}

// dumpEntry is the JSON shape printed by the dump command.
type dumpEntry struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted"`
}

func printDump(tree *histkv.BufferedBTree) error {
	var entries []dumpEntry
	tree.AllKeys(func(key, value []byte, deleted bool) {
		entries = append(entries, dumpEntry{Key: string(key), Value: string(value), Deleted: deleted})
	})
	buf, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(buf))
	return nil
}

func runOrPrint(args []string, n int, fn func() error) {
	if len(args) != n {
		fmt.Println("wrong number of arguments")
		return
	}
	if err := fn(); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("ok")
}

func printHelp() {
	fmt.Println(`commands:
  createdb <name>       create a database
  dropdb <name>         delete a database
  usedb <name>          select the current database
  showdbs               list databases
  put <key> <value...>  write a key
  get <key>             read a key's current value
  delete <key>          tombstone a key
  asof <key> <tx>       read a key's value as of a transaction number
  dump                  print every live key/value as JSON
  adduser <user> <pass> create a user
  login <user> <pass>   authenticate the current client
  whoami                show the current client's authenticated user
  quit                  exit`)
}
