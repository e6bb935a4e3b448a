package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nyanpass/panel/internal/app"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/db"
	"github.com/nyanpass/panel/internal/models"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// withBilling opens the configured database and runs fn against a billing service.
func withBilling(state *cliState, fn func(svc *billing.Service) error) error {
	cfg, errLoad := app.LoadConfig(state.appCfg)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := app.OpenDatabase(cfg)
	if errOpen != nil {
		return errOpen
	}
	defer closeConn(conn)
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	return fn(billing.New(conn, billing.Options{}))
}

func closeConn(conn *gorm.DB) {
	if sqlDB, errDB := conn.DB(); errDB == nil {
		_ = sqlDB.Close()
	}
}

func newCodesCmd(state *cliState) *cobra.Command {
	codesCmd := &cobra.Command{
		Use:   "codes",
		Short: "Manage recharge codes",
	}

	var (
		amount string
		count  int
		remark string
	)
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate recharge codes and print one per line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			value, errParse := models.ParseMoney(amount)
			if errParse != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, errParse)
			}
			return withBilling(state, func(svc *billing.Service) error {
				codes, errGenerate := svc.GenerateCodes(cmd.Context(), billing.GenerateCodesInput{
					Amount: value,
					Count:  count,
					Remark: remark,
				})
				if errGenerate != nil {
					return errGenerate
				}
				out := cmd.OutOrStdout()
				for _, code := range codes {
					fmt.Fprintln(out, code.Code)
				}
				return nil
			})
		},
	}
	generateCmd.Flags().StringVar(&amount, "amount", "", "face value, e.g. 10.00")
	generateCmd.Flags().IntVarP(&count, "count", "n", 1, "number of codes (1-500)")
	generateCmd.Flags().StringVar(&remark, "remark", "", "note stored with each code")
	_ = generateCmd.MarkFlagRequired("amount")

	codesCmd.AddCommand(generateCmd)
	return codesCmd
}

func newCouponsCmd(state *cliState) *cobra.Command {
	couponsCmd := &cobra.Command{
		Use:   "coupons",
		Short: "Manage coupons",
	}

	var (
		kind         string
		value        string
		minAmount    string
		maxDiscount  string
		prefix       string
		count        int
		limitPerUser int
		totalLimit   int
		validFor     time.Duration
		planIDs      []uint
	)
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate coupons from a template and print one code per line",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tmpl, errTemplate := couponTemplate(kind, value, minAmount, maxDiscount)
			if errTemplate != nil {
				return errTemplate
			}
			tmpl.LimitPerUser = limitPerUser
			tmpl.TotalLimit = totalLimit
			for _, id := range planIDs {
				tmpl.PlanIDs = append(tmpl.PlanIDs, uint64(id))
			}
			if validFor > 0 {
				expires := time.Now().UTC().Add(validFor)
				tmpl.ExpiredAt = &expires
			}
			return withBilling(state, func(svc *billing.Service) error {
				coupons, errGenerate := svc.GenerateCoupons(cmd.Context(), billing.GenerateCouponsInput{
					Template: tmpl,
					Prefix:   prefix,
					Count:    count,
				})
				if errGenerate != nil {
					return errGenerate
				}
				out := cmd.OutOrStdout()
				for _, c := range coupons {
					fmt.Fprintln(out, c.Code)
				}
				return nil
			})
		},
	}
	generateCmd.Flags().StringVar(&kind, "type", "fixed", "fixed, percent or days")
	generateCmd.Flags().StringVar(&value, "value", "", "amount (fixed), percent (percent) or days (days)")
	generateCmd.Flags().StringVar(&minAmount, "min-amount", "0", "minimum order amount")
	generateCmd.Flags().StringVar(&maxDiscount, "max-discount", "0", "cap for percent coupons, 0 for none")
	generateCmd.Flags().StringVar(&prefix, "prefix", "", "code prefix")
	generateCmd.Flags().IntVarP(&count, "count", "n", 1, "number of coupons (1-500)")
	generateCmd.Flags().IntVar(&limitPerUser, "limit-per-user", 0, "uses per user, 0 for unlimited")
	generateCmd.Flags().IntVar(&totalLimit, "total-limit", 0, "total uses, 0 for unlimited")
	generateCmd.Flags().DurationVar(&validFor, "valid-for", 0, "expire after this duration, 0 for never")
	generateCmd.Flags().UintSliceVar(&planIDs, "plan", nil, "restrict to plan ID (repeatable)")
	_ = generateCmd.MarkFlagRequired("value")

	couponsCmd.AddCommand(generateCmd)
	return couponsCmd
}

func couponTemplate(kind, value, minAmount, maxDiscount string) (billing.CouponInput, error) {
	tmpl := billing.CouponInput{IsEnabled: true}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "fixed":
		tmpl.Type = models.CouponTypeFixedAmount
		amount, errParse := models.ParseMoney(value)
		if errParse != nil {
			return tmpl, fmt.Errorf("invalid --value %q: %w", value, errParse)
		}
		tmpl.Value = int64(amount)
	case "percent":
		tmpl.Type = models.CouponTypePercentage
	case "days":
		tmpl.Type = models.CouponTypeBonusDays
	default:
		return tmpl, fmt.Errorf("invalid --type %q", kind)
	}
	if tmpl.Type != models.CouponTypeFixedAmount {
		n, errAtoi := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if errAtoi != nil {
			return tmpl, fmt.Errorf("invalid --value %q: %w", value, errAtoi)
		}
		tmpl.Value = n
	}

	var errParse error
	if tmpl.MinAmount, errParse = models.ParseMoney(minAmount); errParse != nil {
		return tmpl, fmt.Errorf("invalid --min-amount %q: %w", minAmount, errParse)
	}
	if tmpl.MaxDiscount, errParse = models.ParseMoney(maxDiscount); errParse != nil {
		return tmpl, fmt.Errorf("invalid --max-discount %q: %w", maxDiscount, errParse)
	}
	return tmpl, nil
}
