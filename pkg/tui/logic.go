package tui

import (
	"context"
	"fmt"
	"time"

	"evmsend/pkg/config"
	"evmsend/pkg/events"
	"evmsend/pkg/models"
	"evmsend/pkg/rpc"
	"evmsend/pkg/transfer"
	"evmsend/pkg/utils"
	"evmsend/pkg/wallet"

	tea "github.com/charmbracelet/bubbletea"
)

// historyPageSize is how many journal entries the history view loads.
const historyPageSize = 50

func listenForEvents(sub events.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

func listenForPrompts(prompts chan confirmRequest) tea.Cmd {
	return func() tea.Msg {
		return <-prompts
	}
}

func listenForNotifications(notes chan transfer.Notification) tea.Cmd {
	return func() tea.Msg {
		return <-notes
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

// submitCmd runs one submission off the UI loop. Confirmation prompts come
// back through the Interactor while it runs.
func submitCmd(form *transfer.Form) tea.Cmd {
	return func() tea.Msg {
		return submitDoneMsg{result: form.Submit(context.Background())}
	}
}

// unlockCmd unlocks the configured keystore account and connects it to chain.
func unlockCmd(ks *wallet.Keystore, address, password string, chain config.ChainConfig) tea.Cmd {
	return func() tea.Msg {
		key, err := ks.Unlock(address, password)
		if err != nil {
			return connectedMsg{err: err}
		}
		return connect(key, chain)
	}
}

// reconnectCmd connects an already unlocked key to another chain.
func reconnectCmd(key wallet.KeySource, chain config.ChainConfig) tea.Cmd {
	return func() tea.Msg {
		return connect(key, chain)
	}
}

func connect(key wallet.KeySource, chain config.ChainConfig) connectedMsg {
	ctx, cancel := context.WithTimeout(context.Background(), rpc.DialTimeout)
	defer cancel()
	client, err := wallet.Dial(ctx, chain)
	if err != nil {
		return connectedMsg{err: fmt.Errorf("connect %s: %w", chain.Name, err)}
	}
	return connectedMsg{signer: wallet.NewKeySigner(client, key)}
}

func fetchBalanceCmd(signer *wallet.KeySigner) tea.Cmd {
	return func() tea.Msg {
		addr := signer.Address()
		client := signer.Client()
		if client == nil {
			return models.BalanceData{Address: addr.Hex(), Err: transfer.ErrProviderUnavailable}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		bal, err := client.Balance(ctx, addr)
		return models.BalanceData{Address: addr.Hex(), Balance: bal, Err: err}
	}
}

func fetchGasCmd(rpcURLs []string) tea.Cmd {
	if len(rpcURLs) == 0 {
		return nil
	}
	return func() tea.Msg {
		data, _ := rpc.FetchGasPrice(rpcURLs)
		return data
	}
}

func (m model) scheduleGas() tea.Cmd {
	secs := m.config.GasRefreshSeconds
	if secs <= 0 {
		return nil
	}
	return tea.Tick(time.Duration(secs)*time.Second, func(t time.Time) tea.Msg {
		return gasTickMsg(t)
	})
}

func loadHistoryCmd(h HistorySource) tea.Cmd {
	return func() tea.Msg {
		if h == nil {
			return historyMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		recs, err := h.Recent(ctx, historyPageSize)
		return historyMsg{records: recs, err: err}
	}
}

// appendGasPoint records a gas sample and its trend against the previous one.
func (m *model) appendGasPoint(data models.GasPriceData) {
	if data.Err != nil || data.Price == nil {
		return
	}
	if m.gasPrice != nil {
		m.gasTrend = data.Price.Cmp(m.gasPrice)
	}
	m.gasPrice = data.Price
	m.gasPriceHistory = append(m.gasPriceHistory, models.GasPricePoint{Timestamp: time.Now(), Value: utils.Gwei(data.Price)})
	if len(m.gasPriceHistory) > maxGasPoints {
		m.gasPriceHistory = m.gasPriceHistory[len(m.gasPriceHistory)-maxGasPoints:]
	}
}

// syncForm pushes the text inputs into the form.
func (m model) syncForm() {
	if m.form == nil {
		return
	}
	m.form.UpdateRecipient(m.inputs[inputRecipient].Value())
	m.form.UpdateAmount(m.inputs[inputAmount].Value())
}

func (m model) submitDisabled() bool {
	return transfer.SubmitDisabled(m.inputs[inputRecipient].Value(), m.inputs[inputAmount].Value(), m.loading)
}

func (m *model) focus(idx int) {
	m.focusIdx = idx
	for i := range m.inputs {
		if i == idx {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

// saveSelectedChain persists the active chain so the next start uses it.
func (m model) saveSelectedChain() error {
	if m.configPath == "" || len(m.chains) == 0 {
		return nil
	}
	return config.SaveConfig(m.walletCfg, m.chains, m.activeIdx, m.config, m.configPath)
}
