package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"agentsend/internal/contentstore"
	"agentsend/internal/directory"
	"agentsend/internal/ledger"
	"agentsend/internal/lifecycle"
	"agentsend/internal/model"
	"agentsend/internal/storage"
	"agentsend/internal/store"
	"agentsend/internal/utils/log"
	"agentsend/internal/wallet"
)

type (
	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField

		kv      storage.KV
		signer  wallet.Signer
		dir     *directory.Directory
		backend ledger.Backend
		content contentstore.Store
		store   *store.Store
		orch    *lifecycle.Orchestrator

		identity string
		toName   string
		host     string

		conn   *websocket.Conn
		cancel context.CancelFunc
	}

	Options struct {
		Identity string
		// Host is the relay address, e.g. "localhost:9090".
		Host    string
		Signer  wallet.Signer
		Backend ledger.Backend
		// Content overrides the default local content store, e.g. with the
		// Pinata-backed one.
		Content contentstore.Store
	}
)

func NewApp(kv storage.KV, opts Options) *App {
	content := opts.Content
	if content == nil {
		content = contentstore.NewMock(kv)
	}
	return &App{
		app:      tview.NewApplication(),
		kv:       kv,
		signer:   opts.Signer,
		backend:  opts.Backend,
		dir:      directory.New(kv),
		content:  content,
		identity: opts.Identity,
		host:     opts.Host,
	}
}

func (c *App) Run(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	keyPair, err := c.ensureKeys(ctx)
	if err != nil {
		log.Fatal("initialize encryption keys failed", zap.Error(err))
	}

	if err := c.publishKey(ctx, keyPair); err != nil {
		log.Fatal("publish public key failed", zap.Error(err))
	}

	if err := c.backend.Init(ctx); err != nil {
		log.Fatal("initialize ledger failed", zap.Error(err))
	}
	c.ensureDemoBalance(ctx)

	c.store, err = store.New(ctx, c.kv, c.identity)
	if err != nil {
		log.Fatal("load message store failed", zap.Error(err))
	}

	var toName string
	fmt.Print("Enter recipient's identity: ")
	_, err = fmt.Scan(&toName) // reads until whitespace
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	c.toName = toName

	if err := c.resolveRecipientKey(ctx, toName); err != nil {
		log.Fatal("recipient has not initialized encryption", zap.Error(err))
	}

	c.orch = lifecycle.New(c.dir, c.content, c.backend, c.store, lifecycle.Options{
		Identity: c.identity,
		KeyPair:  keyPair,
	})

	c.conn, err = c.initWebhook(c.identity)
	if err != nil {
		log.Fatal("init webhook to relay failed", zap.Error(err))
	}

	go c.orch.Run(ctx)
	go c.watchTransitions()
	go c.listenOnWebhook()
	c.renderUI()
}

func (c *App) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.backend.Close()
}

// blocking function
func (c *App) renderUI() {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" Chat with %s ", c.toName))

	c.input = tview.NewInputField().
		SetLabel("Message: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Message ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			text := c.input.GetText()
			if text == "" {
				return
			}

			go func(msg string) {
				err := c.SendMessage(msg)
				if err != nil {
					c.app.Suspend(func() {
						log.Error("Send message failed", zap.Error(err))
					})
				}
			}(text)
		}
	})

	for _, m := range c.store.ConversationMessages(c.toName) {
		c.printMessage(&m)
	}

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	if err := c.app.SetRoot(layout, true).SetFocus(c.input).Run(); err != nil {
		log.Fatal("cannot init app", zap.Error(err))
	}
}

func (c *App) listenOnWebhook() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug("worker web socket closed", zap.Error(err))
			c.conn.Close()
			break
		}

		var message model.RelayMessage
		err = json.Unmarshal(data, &message)
		if err != nil {
			log.Error("Unmarshal relay message failed", zap.Error(err))
			continue
		}

		if p, ok := c.content.(*contentstore.Pinata); ok {
			// Keep the sender's content available from our side too.
			go p.Pin(context.TODO(), message.ContentRef)
		}

		msg, err := c.orch.Receive(context.TODO(), message)
		if err != nil {
			c.app.Suspend(func() {
				log.Error("receive message failed: ", zap.Error(err))
			})
			continue
		}

		c.app.QueueUpdateDraw(func() {
			fmt.Fprintf(c.chatbox, "[green]%s:[-] %s\n", msg.Sender, msg.Plaintext)
			c.chatbox.ScrollToEnd()
		})
	}
}

func (c *App) SendMessage(text string) error {
	msg, err := c.orch.Send(context.TODO(), c.toName, text)
	if err != nil {
		return err
	}

	c.conn.WriteJSON(&model.RelayMessage{
		From:        c.identity,
		To:          c.toName,
		ContentRef:  msg.ContentRef,
		TransferRef: msg.TransferRef,
	})

	c.app.QueueUpdateDraw(func() {
		fmt.Fprintf(c.chatbox, "[yellow]You:[-] %s\n", text)
		c.input.SetText("")
		c.chatbox.ScrollToEnd()
	})
	return nil
}

func (c *App) watchTransitions() {
	for t := range c.orch.Transitions() {
		tr := t
		c.app.QueueUpdateDraw(func() {
			if tr.Status == model.StatusFailed {
				fmt.Fprintf(c.chatbox, "[red]message failed: %s[-]\n", tr.Reason)
			} else {
				fmt.Fprintf(c.chatbox, "[grey]» %s[-]\n", tr.Status)
			}
			c.chatbox.ScrollToEnd()
		})
	}
}

func (c *App) printMessage(m *model.Message) {
	if m.Sender == c.identity {
		fmt.Fprintf(c.chatbox, "[yellow]You:[-] %s\n", m.Plaintext)
	} else {
		fmt.Fprintf(c.chatbox, "[green]%s:[-] %s\n", m.Sender, m.Plaintext)
	}
}
