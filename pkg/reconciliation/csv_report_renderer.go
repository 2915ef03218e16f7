package reconciliation

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

type ReportRenderer interface {
	RenderReport(report Report) (string, error)
}

type CsvReportRendererImpl struct {
}

func NewCsvReportRenderer() *CsvReportRendererImpl {
	return &CsvReportRendererImpl{}
}

func (t *CsvReportRendererImpl) RenderReport(report Report) (string, error) {
	var b bytes.Buffer
	writer := csv.NewWriter(&b)
	for _, row := range reportRows(report) {
		err := writer.Write(row)
		if err != nil {
			log.Errorf("Error writing to csv: %v", err)
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return "", err
	}

	return b.String(), nil
}

// reportRows lays the report out as a summary block followed by one line per wallet.
func reportRows(report Report) [][]string {
	data := [][]string{
		{"Generated", report.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Total wallet balance", report.TotalWalletBalance.StringFixed(2)},
		{"Net flow", report.NetFlow.StringFixed(2)},
		{"Discrepancy", report.Discrepancy.StringFixed(2)},
		{"Initial balances", report.InitialBalances.StringFixed(2)},
		{"Unexplained drift", report.UnexplainedDrift.StringFixed(2)},
		{"Wallets", strconv.Itoa(report.WalletCount)},
		{"Transactions", strconv.Itoa(report.TransactionCount)},
		{"Drift", yesNo(report.Drift)},
		{},
		{"Wallet", "Balance", "Initial", "Audited changes", "Complete"},
	}
	for _, w := range report.Wallets {
		data = append(data, []string{
			w.Name,
			w.Balance.StringFixed(2),
			w.InitialBalance.StringFixed(2),
			w.AuditedChanges.StringFixed(2),
			yesNo(w.Complete),
		})
	}
	return data
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
