package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"evmsend/pkg/networks"
	"evmsend/pkg/transfer"
	"evmsend/pkg/utils"
)

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}

	if m.confirm != nil {
		return m.viewConfirm()
	}

	if m.showConnect {
		return m.viewConnect()
	}

	if m.showGasTracker {
		return m.viewGasTracker()
	}

	if m.showHistory {
		return m.viewHistory()
	}

	return m.viewForm()
}

func (m model) place(content, footer string) string {
	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}

// currency is the symbol shown next to amounts before the network is known.
func (m model) currency() string {
	if m.status.Network.ChainID != 0 && m.status.Network.Currency != networks.Unknown.Currency {
		return m.status.Network.Currency
	}
	if sym := m.activeChain().Symbol; sym != "" {
		return sym
	}
	return "ETH"
}

func (m model) viewForm() string {
	chain := m.activeChain()
	header := titleStyle.Render(fmt.Sprintf("EVM Send - %s", chain.Name))

	// Top bar
	gasDisplay := "Gas: N/A"
	gasStyle := subtleStyle
	if m.gasPrice != nil {
		val := utils.Gwei(m.gasPrice)
		gasDisplay = fmt.Sprintf("Gas: %.2f Gwei", val)
		if m.gasTrend > 0 {
			gasDisplay += " ↑"
		} else if m.gasTrend < 0 {
			gasDisplay += " ↓"
		}
		if val < 30 {
			gasStyle = infoStyle
		} else if val < 100 {
			gasStyle = warnStyle
		} else {
			gasStyle = errStyle
		}
	}

	walletLine := subtleStyle.Render("Wallet: not connected (ctrl+w to connect)")
	balanceLine := ""
	if addr, ok := m.session.Address(); ok {
		walletLine = fmt.Sprintf("Wallet: %s", utils.ShortHex(addr.Hex()))
		switch {
		case m.connecting:
			balanceLine = m.spinner.View() + " Connecting..."
		case m.balanceErr != nil:
			balanceLine = errStyle.Render("Balance unavailable: " + utils.TruncateString(m.balanceErr.Error(), 40))
		case m.balance != nil:
			balanceLine = balanceStyle.Render(fmt.Sprintf("%s %s", utils.FormatAmount(m.balance, m.decimals(), 4), m.currency()))
		default:
			balanceLine = subtleStyle.Render("Balance: loading...")
		}
	}
	rpcLine := ""
	if signer := m.session.Current(); signer != nil && signer.Client() != nil {
		rpcLine = subtleStyle.Render(fmt.Sprintf("RPC: %s", utils.TruncateString(signer.Client().URL(), 40)))
	}

	// Inputs
	recipient := m.inputs[inputRecipient].Value()
	amount := m.inputs[inputAmount].Value()
	recipientHint := ""
	switch {
	case recipient == "":
	case !transfer.IsValidRecipient(recipient):
		recipientHint = errStyle.Render("Not a valid address")
	case transfer.ChecksumMismatch(recipient):
		recipientHint = warnStyle.Render("Checksum does not match, double check the address")
	}
	amountHint := ""
	if amount != "" && !transfer.IsValidAmount(amount) {
		amountHint = errStyle.Render("Amount must be a positive number")
	}

	labelStyle := lipgloss.NewStyle().Width(16)
	form := lipgloss.JoinVertical(lipgloss.Left,
		labelStyle.Render("Recipient")+m.inputs[inputRecipient].View(),
		labelStyle.Render("")+recipientHint,
		labelStyle.Render(fmt.Sprintf("Amount (%s)", m.currency()))+m.inputs[inputAmount].View(),
		labelStyle.Render("")+amountHint,
	)

	// Send button
	var button string
	switch {
	case m.loading:
		button = buttonDisabledStyle.Render(m.spinner.View() + " Sending...")
	case m.submitDisabled():
		button = buttonDisabledStyle.Render("Send")
	default:
		button = buttonStyle.Render("Send")
	}

	stateLine := subtleStyle.Render(fmt.Sprintf("Status: %s", stateLabel(m.status.State)))
	if m.status.Network.ChainID != 0 {
		stateLine += subtleStyle.Render(fmt.Sprintf(" • %s", m.status.Network.Name))
	}

	lastTx := ""
	if m.status.TxHash != "" {
		lastTx = fmt.Sprintf("Last tx: %s", utils.ShortHex(m.status.TxHash))
		if m.status.ExplorerURL != "" {
			lastTx += subtleStyle.Render(" (ctrl+o: open • ctrl+y: copy)")
		}
	}

	block := []string{
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, walletLine, subtleStyle.Render(" • "), gasStyle.Render(gasDisplay)),
	}
	if balanceLine != "" {
		block = append(block, balanceLine)
	}
	if rpcLine != "" {
		block = append(block, rpcLine)
	}
	block = append(block, "\n", form, "\n", button, "\n", stateLine)
	if lastTx != "" {
		block = append(block, lastTx)
	}

	targetWidth := m.width - 4
	if targetWidth < 60 {
		targetWidth = 60
	}
	content := boxStyle.Width(targetWidth).Align(lipgloss.Center).Render(lipgloss.JoinVertical(lipgloss.Center, block...))

	if m.notification != nil {
		content = lipgloss.JoinVertical(lipgloss.Center, content, m.viewNotification(targetWidth))
	}

	line1 := "tab: next field • enter/ctrl+s: send • ctrl+w: connect • ctrl+d: disconnect • f1: help"
	line2 := "ctrl+g: gas • ctrl+l: history • ctrl+a: copy address • ctrl+r: balance"
	if len(m.chains) > 1 {
		line2 += " • ctrl+n: next chain"
	}
	line2 += fmt.Sprintf(" • ctrl+q: quit • v%s", Version)

	var footer string
	if m.width > 0 {
		l1 := subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line1)
		l2 := subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line2)
		footer = lipgloss.JoinVertical(lipgloss.Center, l1, l2)
	} else {
		footer = subtleStyle.Render(line1 + "\n" + line2)
	}
	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Center, infoStyle.Render(m.statusMessage), footer)
	}

	return m.place(content, footer)
}

func (m model) decimals() int {
	if m.status.Network.Decimals > 0 {
		return m.status.Network.Decimals
	}
	if d := m.activeChain().Decimals; d > 0 {
		return d
	}
	return networks.DefaultDecimals
}

func stateLabel(s transfer.State) string {
	switch s {
	case transfer.StateAwaitingConfirmation:
		return "Awaiting confirmation"
	case transfer.StateSubmitting:
		return "Submitting"
	case transfer.StateWaitingForFinality:
		return "Waiting for confirmation on chain"
	case transfer.StateSucceeded:
		return "Succeeded"
	case transfer.StateFailed:
		return "Failed"
	default:
		return "Ready"
	}
}

func (m model) viewNotification(width int) string {
	n := m.notification
	title := infoStyle.Bold(true).Render(n.Title)
	border := noteSuccessStyle
	switch n.Severity {
	case transfer.SeverityError:
		title = errStyle.Bold(true).Render(n.Title)
		border = noteErrorStyle
	case transfer.SeverityInfo:
		title = subtleStyle.Bold(true).Render(n.Title)
		border = boxStyle
	}
	lines := []string{title, lipgloss.NewStyle().Width(width - 4).Render(n.Message)}
	if n.Link != "" {
		lines = append(lines, linkStyle.Render(n.Link))
	}
	hint := "esc: dismiss"
	if n.Link != "" {
		hint = "ctrl+o: open in explorer • ctrl+y: copy hash • " + hint
	}
	lines = append(lines, subtleStyle.Render(hint))
	return border.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m model) viewConfirm() string {
	p := m.confirm.prompt
	body := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render("Confirm Transfer"),
		"\n",
		fmt.Sprintf("Send %s %s", p.Amount, p.Network.Currency),
		fmt.Sprintf("to %s", p.Recipient),
		fmt.Sprintf("on %s?", p.Network.Name),
		"\n",
		subtleStyle.Render("(y) Yes • (n) No"),
	)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, boxStyle.Render(body))
}

func (m model) viewConnect() string {
	var lines []string
	lines = append(lines, titleStyle.Render("Connect Wallet"), "\n")
	if m.keystore == nil {
		lines = append(lines,
			"No keystore configured.",
			subtleStyle.Render("Set wallet.keystore_dir in the config file"),
			subtleStyle.Render("or EVMSEND_PRIVATE_KEY in the environment."),
		)
	} else {
		account := m.walletCfg.Address
		if account == "" {
			account = "(only account in keystore)"
		}
		lines = append(lines,
			fmt.Sprintf("Keystore: %s", utils.TruncateString(m.walletCfg.KeystoreDir, 40)),
			fmt.Sprintf("Account:  %s", account),
			fmt.Sprintf("Chain:    %s", m.activeChain().Name),
			"\n",
			m.passwordInput.View(),
		)
		if m.connecting {
			lines = append(lines, m.spinner.View()+" Unlocking...")
		}
		if m.connectErr != nil {
			lines = append(lines, errStyle.Render(utils.TruncateString(m.connectErr.Error(), 60)))
		}
	}
	lines = append(lines, "\n", subtleStyle.Render("Enter to unlock • Esc to cancel"))
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
	footer := ""
	if m.statusMessage != "" {
		footer = infoStyle.Render(m.statusMessage)
	}
	return m.place(content, footer)
}

func (m model) viewHistory() string {
	header := titleStyle.Render("Sent Transfers")

	var body string
	switch {
	case m.history == nil:
		body = "Transfer history is disabled."
	case m.historyErr != nil:
		body = errStyle.Render(fmt.Sprintf("Failed to load history: %v", m.historyErr))
	case len(m.historyRecords) == 0:
		body = "No transfers recorded yet."
	default:
		headers := tableHeaderStyle.Render(fmt.Sprintf("  %-16s %-14s %-20s %-18s", "TIME", "TO", "AMOUNT", "NETWORK"))
		rows := ""
		for i, rec := range m.historyRecords {
			cursor := "  "
			if i == m.historyIdx {
				cursor = "> "
			}
			rows += fmt.Sprintf("%s%-16s %-14s %-20s %-18s\n",
				cursor,
				rec.SentAt.Local().Format("2006-01-02 15:04"),
				utils.ShortHex(rec.To),
				utils.TruncateString(rec.Amount+" "+rec.Currency, 20),
				utils.TruncateString(rec.Network, 18),
			)
		}
		sel := m.historyRecords[m.historyIdx]
		detail := subtleStyle.Render(fmt.Sprintf("Hash: %s", sel.Hash))
		body = lipgloss.JoinVertical(lipgloss.Left, headers, rows, detail)
	}

	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", body))
	footer := subtleStyle.Render("↑/↓: select • o: open • c: copy hash • r: reload • q/esc: back")
	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Center, infoStyle.Render(m.statusMessage), footer)
	}
	return m.place(content, footer)
}

func (m model) viewGasTracker() string {
	selectedRange := gasRanges[m.gasRangeIdx]

	headerText := fmt.Sprintf("Gas Tracker: %s (Gwei) - Last %s", m.activeChain().Name, gasRangeLabels[m.gasRangeIdx])
	header := titleStyle.Render(headerText)

	var graph string
	var stats string

	targetBoxWidth := m.width - 4
	if targetBoxWidth < 0 {
		targetBoxWidth = 0
	}

	var filteredHistory []float64
	now := time.Now()
	for _, dp := range m.gasPriceHistory {
		if now.Sub(dp.Timestamp) <= selectedRange {
			filteredHistory = append(filteredHistory, dp.Value)
		}
	}

	if len(filteredHistory) > 0 {
		lo, hi, avg := gasStats(filteredHistory)
		stats = subtleStyle.Render(fmt.Sprintf("Low: %.2f • Avg: %.2f • High: %.2f", lo, avg, hi))

		graphWidth := targetBoxWidth - 14
		if graphWidth < 10 {
			graphWidth = 10
		}
		graphHeight := m.height - 14
		if graphHeight < 1 {
			graphHeight = 1
		}
		graph = asciigraph.Plot(filteredHistory,
			asciigraph.Height(graphHeight),
			asciigraph.Width(graphWidth),
			asciigraph.Caption("Gas Price (Gwei)"),
		)
	} else {
		graph = "Not enough data to draw graph."
	}

	content := boxStyle.Width(targetBoxWidth).Align(lipgloss.Center).Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", stats, "\n", graph))
	footer := subtleStyle.Render("ctrl+g/q/esc: back • r: refresh • </>: change range")

	return m.place(content, footer)
}

func gasStats(values []float64) (lo, hi, avg float64) {
	lo, hi = values[0], values[0]
	sum := 0.0
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		sum += v
	}
	return lo, hi, sum / float64(len(values))
}

func (m model) viewHelp() string {
	shortcuts := []string{
		"tab/↓: Next Field",
		"shift+tab/↑: Previous Field",
		"enter/ctrl+s: Send",
		"ctrl+w: Connect Wallet",
		"ctrl+d: Disconnect Wallet",
		"ctrl+n: Next Chain",
		"ctrl+g: Gas Tracker",
		"ctrl+l: Transfer History",
		"ctrl+r: Refresh Balance",
		"ctrl+a: Copy Address",
		"ctrl+o: Open Last Transaction",
		"ctrl+y: Copy Last Transaction Hash",
		"esc: Dismiss Notification",
		"ctrl+q/ctrl+c: Quit",
		"f1: Toggle Help",
	}

	header := titleStyle.Render("Help")
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(shortcuts, "\n")))
	footer := subtleStyle.Render("Press 'f1' or 'esc' to close")

	return m.place(content, footer)
}
