package middleware

import (
	"github.com/danielgtaylor/huma/v2"
)

// Container набирает цепочку middleware для очередной группы операций
type Container struct {
	huma.Middlewares
}

func NewContainer() *Container {
	return &Container{
		Middlewares: make(huma.Middlewares, 0),
	}
}

// Add добавляет middleware в конец цепочки
func (mc *Container) Add(middleware ...func(ctx huma.Context, next func(huma.Context))) *Container {
	mc.Middlewares = append(mc.Middlewares, middleware...)
	return mc
}

// GetAllAndClear возвращает собранную цепочку и начинает новую
func (mc *Container) GetAllAndClear() huma.Middlewares {
	result := mc.Middlewares
	mc.Middlewares = nil
	return result
}
