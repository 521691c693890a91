package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"fintrack/internal/domain"
	"fintrack/internal/engine"
)

type rangeQuery struct {
	From  string `query:"from" doc:"inclusive start date"`
	To    string `query:"to" doc:"inclusive end date"`
	Limit int    `query:"limit" doc:"without a range, return the newest entries"`
}

func (q rangeQuery) resolve(e engine.Engine) (time.Time, time.Time, huma.StatusError) {
	from, err := dateParam(e, "from", q.From)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := dateParam(e, "to", q.To)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, newAPIError(http.StatusBadRequest, "invalid_input", "to is before from", map[string]any{"field": "to"})
	}
	return from, to, nil
}

func (q rangeQuery) open() bool {
	return strings.TrimSpace(q.From) == "" && strings.TrimSpace(q.To) == ""
}

// entryInput converts a request body; the handler fills owner and actor.
func entryInput(e engine.Engine, body CreateEntryRequest) (engine.EntryInput, huma.StatusError) {
	amount, err := engine.ParseAmount(body.Amount)
	if err != nil {
		return engine.EntryInput{}, handleError(err)
	}
	in := engine.EntryInput{
		Amount:      amount,
		Category:    strings.TrimSpace(body.Category),
		Description: body.Description,
	}
	if body.Date != nil {
		d, derr := dateParam(e, "date", *body.Date)
		if derr != nil {
			return engine.EntryInput{}, derr
		}
		if !d.IsZero() {
			in.Date = &d
		}
	}
	kind, err := domain.ParseExpenseKind(body.Kind)
	if err != nil {
		return engine.EntryInput{}, newAPIError(http.StatusBadRequest, "invalid_input", err.Error(), map[string]any{"field": "kind"})
	}
	in.Kind = kind
	return in, nil
}

func registerExpenses(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-expense",
		Method:        http.MethodPost,
		Path:          "/expenses",
		Summary:       "Record an expense",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateEntryRequest `json:"body"`
	}) (*struct {
		Body ExpenseResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		in, apiErr := entryInput(e, input.Body)
		if apiErr != nil {
			return nil, apiErr
		}
		in.OwnerID, in.ActorID = owner, actorFromContext(ctx)
		exp, err := e.AddExpense(ctx, in)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ExpenseResponse `json:"body"`
		}{Body: expenseResponse(exp)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-expenses",
		Method:      http.MethodGet,
		Path:        "/expenses",
		Summary:     "List expenses in a date range, or the newest ones",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *rangeQuery) (*struct {
		Body []ExpenseResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		var (
			items []domain.Expense
			err   error
		)
		if input.open() {
			items, err = e.LastExpenses(ctx, owner, normalizeLimit(input.Limit))
		} else {
			from, to, apiErr := input.resolve(e)
			if apiErr != nil {
				return nil, apiErr
			}
			items, err = e.ListExpenses(ctx, owner, from, to)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ExpenseResponse `json:"body"`
		}{Body: mapExpenses(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-expense",
		Method:        http.MethodDelete,
		Path:          "/expenses/{id}",
		Summary:       "Delete an expense",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		deleted, err := e.DeleteExpense(ctx, input.ID, owner, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if !deleted {
			return nil, newAPIError(http.StatusNotFound, "not_found", "expense not found", nil)
		}
		return &struct{}{}, nil
	})
}

func registerIncomes(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-income",
		Method:        http.MethodPost,
		Path:          "/incomes",
		Summary:       "Record an income",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateEntryRequest `json:"body"`
	}) (*struct {
		Body IncomeResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		in, apiErr := entryInput(e, input.Body)
		if apiErr != nil {
			return nil, apiErr
		}
		in.OwnerID, in.ActorID = owner, actorFromContext(ctx)
		inc, err := e.AddIncome(ctx, in)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IncomeResponse `json:"body"`
		}{Body: incomeResponse(inc)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-incomes",
		Method:      http.MethodGet,
		Path:        "/incomes",
		Summary:     "List incomes in a date range",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *rangeQuery) (*struct {
		Body []IncomeResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		from, to, apiErr := input.resolve(e)
		if apiErr != nil {
			return nil, apiErr
		}
		items, err := e.ListIncomes(ctx, owner, from, to)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []IncomeResponse `json:"body"`
		}{Body: mapIncomes(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-income",
		Method:        http.MethodDelete,
		Path:          "/incomes/{id}",
		Summary:       "Delete an income",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		deleted, err := e.DeleteIncome(ctx, input.ID, owner, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		if !deleted {
			return nil, newAPIError(http.StatusNotFound, "not_found", "income not found", nil)
		}
		return &struct{}{}, nil
	})
}

func registerBalances(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "monthly-balance",
		Method:      http.MethodGet,
		Path:        "/balance",
		Summary:     "Balance of one month with carry-over",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Year  int `query:"year" doc:"defaults to the current year"`
		Month int `query:"month" minimum:"0" maximum:"12" doc:"defaults to the current month"`
	}) (*struct {
		Body MonthBalanceResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		today := e.Today()
		year, month := input.Year, time.Month(input.Month)
		if year == 0 {
			year = today.Year()
		}
		if month == 0 {
			month = today.Month()
		}
		b, err := e.MonthlyBalance(ctx, owner, year, month)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MonthBalanceResponse `json:"body"`
		}{Body: monthBalanceResponse(b)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "yearly-balance",
		Method:      http.MethodGet,
		Path:        "/balance/{year}",
		Summary:     "Month-by-month balance of one year",
	}, func(ctx context.Context, input *struct {
		Year int `path:"year" minimum:"1970" maximum:"9999"`
	}) (*struct {
		Body YearBalanceResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.YearlyBalance(ctx, owner, input.Year)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body YearBalanceResponse `json:"body"`
		}{Body: yearBalanceResponse(b)}, nil
	})
}

func registerReports(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "period-report",
		Method:      http.MethodGet,
		Path:        "/reports/{period}",
		Summary:     "Expense report for the period containing today",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Period string `path:"period" enum:"daily,weekly,monthly,yearly"`
	}) (*struct {
		Body ReportResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		r, err := e.ReportFor(ctx, owner, input.Period)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReportResponse `json:"body"`
		}{Body: reportResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "custom-report",
		Method:      http.MethodGet,
		Path:        "/reports",
		Summary:     "Expense report for an explicit range",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		From string `query:"from" required:"true"`
		To   string `query:"to" required:"true"`
	}) (*struct {
		Body ReportResponse `json:"body"`
	}, error) {
		owner, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		q := rangeQuery{From: input.From, To: input.To}
		from, to, apiErr := q.resolve(e)
		if apiErr != nil {
			return nil, apiErr
		}
		r, err := e.Report(ctx, owner, from, to)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReportResponse `json:"body"`
		}{Body: reportResponse(r)}, nil
	})
}
