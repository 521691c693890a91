package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"fintrack/internal/domain"
	"fintrack/internal/engine"
	"fintrack/internal/schedule"
)

func registerObligations(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-obligation",
		Method:        http.MethodPost,
		Path:          "/obligations",
		Summary:       "Create obligation",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateObligationRequest `json:"body"`
	}) (*struct {
		Body ObligationResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		fields := engine.DraftFields{
			Amount:      input.Body.Amount,
			Category:    input.Body.Category,
			Frequency:   input.Body.Frequency,
			Weekday:     input.Body.Weekday,
			DayOfMonth:  input.Body.DayOfMonth,
			Occurrences: input.Body.Occurrences,
		}
		if input.Body.Description != nil {
			fields.Description = *input.Body.Description
		}
		if input.Body.DueDate != nil {
			fields.DueDate = *input.Body.DueDate
		}
		draft, err := fields.Draft(e.Today())
		if err != nil {
			return nil, handleError(err)
		}
		o, err := e.CreateObligation(ctx, owner, draft, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ObligationResponse `json:"body"`
		}{Body: obligationResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-obligations",
		Method:      http.MethodGet,
		Path:        "/obligations",
		Summary:     "List obligations, due date first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		IncludeSettled bool   `query:"include_settled"`
		Frequency      string `query:"frequency" enum:"once,weekly,biweekly,monthly,quarterly,yearly"`
		Limit          int    `query:"limit" default:"50"`
	}) (*struct {
		Body []ObligationResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListObligations(ctx, owner, engine.ListOptions{
			IncludeSettled: input.IncludeSettled,
			Frequency:      domain.Frequency(input.Frequency),
			Limit:          normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ObligationResponse `json:"body"`
		}{Body: mapObligations(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upcoming-obligations",
		Method:      http.MethodGet,
		Path:        "/obligations/upcoming",
		Summary:     "Active obligations due within the next days, or the rest of this month",
	}, func(ctx context.Context, input *struct {
		Days      int  `query:"days" default:"30"`
		ThisMonth bool `query:"this_month"`
		Next      int  `query:"next" doc:"the next N obligations regardless of date; overrides days"`
	}) (*struct {
		Body []ObligationResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var (
			items []domain.Obligation
			err   error
		)
		switch {
		case input.Next > 0:
			items, err = e.FutureObligations(ctx, owner, normalizeLimit(input.Next))
		case input.ThisMonth:
			items, err = e.UpcomingThisMonth(ctx, owner)
		default:
			items, err = e.UpcomingObligations(ctx, owner, input.Days)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ObligationResponse `json:"body"`
		}{Body: mapObligations(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "overdue-obligations",
		Method:      http.MethodGet,
		Path:        "/obligations/overdue",
		Summary:     "Active obligations past their due date",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ObligationResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.OverdueObligations(ctx, owner)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ObligationResponse `json:"body"`
		}{Body: mapObligations(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "obligation-summary",
		Method:      http.MethodGet,
		Path:        "/obligations/summary",
		Summary:     "Total of obligations due this month",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MonthSummaryResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		sum, err := e.MonthlyObligationSummary(ctx, owner)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MonthSummaryResponse `json:"body"`
		}{Body: summaryResponse(sum)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-obligation",
		Method:      http.MethodGet,
		Path:        "/obligations/{id}",
		Summary:     "Get obligation",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ObligationResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := e.GetObligation(ctx, input.ID, owner)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ObligationResponse `json:"body"`
		}{Body: obligationResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-obligation",
		Method:        http.MethodDelete,
		Path:          "/obligations/{id}",
		Summary:       "Delete obligation in any state",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		deleted, err := e.Delete(ctx, input.ID, owner, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if !deleted {
			return nil, newAPIError(http.StatusNotFound, "not_found", "obligation not found", nil)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pay-obligation",
		Method:      http.MethodPost,
		Path:        "/obligations/{id}/pay",
		Summary:     "Pay the current occurrence",
		Description: "Records one expense dated today and advances, completes or retires the obligation.",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Amount string `query:"amount" doc:"overrides the planned amount for the recorded expense"`
	}) (*struct {
		Body PayResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.PayOptions{ObligationID: input.ID, OwnerID: owner, ActorID: actorFromContext(ctx)}
		if strings.TrimSpace(input.Amount) != "" {
			amount, err := engine.ParseAmount(input.Amount)
			if err != nil {
				return nil, handleError(err)
			}
			opts.Amount = &amount
		}
		res, err := e.Pay(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PayResponse `json:"body"`
		}{Body: PayResponse{
			Obligation: obligationResponse(res.Obligation),
			Expense:    expenseResponse(res.Expense),
			Retired:    res.Retired,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "skip-obligation",
		Method:      http.MethodPost,
		Path:        "/obligations/{id}/skip",
		Summary:     "Skip the current occurrence without recording an expense",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ObligationResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := e.Skip(ctx, input.ID, owner, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ObligationResponse `json:"body"`
		}{Body: obligationResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "normalize-obligations",
		Method:      http.MethodPost,
		Path:        "/normalize",
		Summary:     "Roll stale recurring due dates forward",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]int `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.Normalize(ctx, &owner)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]int `json:"body"`
		}{Body: map[string]int{"advanced": n}}, nil
	})
}

func registerReminders(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "scan-reminders",
		Method:      http.MethodGet,
		Path:        "/reminders/{class}",
		Summary:     "Reminders of one class that are due for delivery",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Class string `path:"class" enum:"due_tomorrow,monthly_3day,yearly_7day,overdue"`
	}) (*struct {
		Body []ReminderResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		reminders, err := e.Scan(ctx, domain.ReminderClass(input.Class), &owner)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]ReminderResponse, 0, len(reminders))
		for _, r := range reminders {
			out = append(out, reminderResponse(r))
		}
		return &struct {
			Body []ReminderResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ack-reminders",
		Method:      http.MethodPost,
		Path:        "/reminders/{class}/ack",
		Summary:     "Record that reminders were delivered",
		Description: "Overdue acks stamp the throttle time; other classes set the reminder flag. An occurrence that was settled or advanced after the scan is not marked.",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Class string             `path:"class" enum:"due_tomorrow,monthly_3day,yearly_7day,overdue"`
		Body  ReminderAckRequest `json:"body"`
	}) (*struct {
		Body map[string]int64 `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		class, err := domain.ParseReminderClass(input.Class)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "invalid_input", err.Error(), map[string]any{"field": "class"})
		}
		occ := make([]domain.Occurrence, 0, len(input.Body.Reminders))
		for _, a := range input.Body.Reminders {
			due, perr := time.Parse(schedule.DateLayout, a.DueDate)
			if perr != nil {
				return nil, newAPIError(http.StatusBadRequest, "invalid_input", "due_date must be YYYY-MM-DD", map[string]any{"field": "due_date"})
			}
			occ = append(occ, domain.Occurrence{ObligationID: a.ObligationID, OwnerID: owner, DueDate: due})
		}
		n, err := e.Mark(ctx, class, occ)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]int64 `json:"body"`
		}{Body: map[string]int64{"marked": n}}, nil
	})
}
