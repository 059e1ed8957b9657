package application

import (
	"wagerbook/domain/interfaces"
	"wagerbook/domain/services"
)

// domainServices are the domain services bound to one unit of work
type domainServices struct {
	balance    interfaces.BalanceService
	wagers     interfaces.WagerService
	settlement interfaces.SettlementService
	markets    interfaces.MarketFeedService
	users      interfaces.UserService
	ledger     interfaces.TransactionLogService
}

func newDomainServices(uow UnitOfWork, policy services.LedgerPolicy) *domainServices {
	bus := uow.EventBus()
	balance := services.NewBalanceService(uow.UserRepository(), uow.TransactionRepository(), bus, policy)
	return &domainServices{
		balance:    balance,
		wagers:     services.NewWagerService(uow.WagerRepository(), uow.MarketRepository(), balance, bus, policy),
		settlement: services.NewSettlementService(uow.WagerRepository(), balance, bus, policy),
		markets:    services.NewMarketFeedService(uow.MarketRepository(), uow.WagerRepository(), bus, policy),
		users:      services.NewUserService(uow.UserRepository(), uow.TransactionRepository(), bus, policy),
		ledger:     services.NewTransactionLogService(uow.UserRepository(), uow.WagerRepository(), uow.TransactionRepository()),
	}
}
